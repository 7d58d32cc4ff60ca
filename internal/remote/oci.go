// Package remote mirrors an artifact store to an OCI registry.
//
// Artifacts are packed into zstd-compressed image layers; the advertised
// root directory hash travels in an image config label. Push and pull
// retry with exponential backoff and bound their parallelism.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	ociremote "github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/klauspost/compress/zstd"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultJobs = 4

	rootLabel = "dev.castor.root"
)

// Registry is one tagged image reference artifacts sync against.
type Registry struct {
	ref  name.Reference
	auth Authenticator
	jobs int
}

// NewRegistry parses a standard image ref (e.g. "ttl.sh/team/cache:main").
func NewRegistry(imageRef string, auth Authenticator) (*Registry, error) {
	ref, err := name.ParseReference(imageRef, name.WithDefaultTag("latest"))
	if err != nil {
		return nil, fmt.Errorf("invalid image ref %q: %w", imageRef, err)
	}
	return &Registry{ref: ref, auth: auth, jobs: DefaultJobs}, nil
}

// SetJobs bounds parallel layer operations.
func (r *Registry) SetJobs(n int) {
	if n > 0 {
		r.jobs = n
	}
}

func (r *Registry) String() string   { return r.ref.String() }
func (r *Registry) Registry() string { return r.ref.Context().RegistryStr() }

// artifactLayer implements v1.Layer over a zstd-compressed packed layer.
type artifactLayer struct {
	compressed   []byte
	uncompressed []byte
}

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

func newArtifactLayer(data []byte) *artifactLayer {
	return &artifactLayer{
		compressed:   zstdEncoder.EncodeAll(data, nil),
		uncompressed: data,
	}
}

func (l *artifactLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *artifactLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *artifactLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}

func (l *artifactLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}

func (l *artifactLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *artifactLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

// Push uploads hash-addressed artifacts, advertising root as the current
// root directory hash.
func (r *Registry) Push(ctx context.Context, root string, objects map[string][]byte) error {
	layers := make([]v1.Layer, 0)
	for _, packed := range packLayers(objects) {
		layers = append(layers, newArtifactLayer(packed))
	}

	img := empty.Image
	if len(layers) > 0 {
		var err error
		img, err = mutate.AppendLayers(img, layers...)
		if err != nil {
			return fmt.Errorf("append layers: %w", err)
		}
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return err
	}
	cfg.Config.Labels = map[string]string{rootLabel: root}
	img, err = mutate.ConfigFile(img, cfg)
	if err != nil {
		return err
	}

	options := append(r.remoteOptions(), ociremote.WithJobs(r.jobs))
	_, err = retry(ctx, 3, func() (struct{}, error) {
		return struct{}{}, ociremote.Write(r.ref, img, options...)
	})
	if err != nil {
		return fmt.Errorf("push %s: %w", r.ref, err)
	}
	return nil
}

// Pull downloads every artifact, returning the advertised root hash.
// Layers download in parallel; the first failure cancels the rest.
func (r *Registry) Pull(ctx context.Context) (string, map[string][]byte, error) {
	img, err := retry(ctx, 3, func() (v1.Image, error) {
		return ociremote.Image(r.ref, r.remoteOptions()...)
	})
	if err != nil {
		return "", nil, fmt.Errorf("fetch %s: %w", r.ref, err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return "", nil, fmt.Errorf("get config: %w", err)
	}
	root := cfg.Config.Labels[rootLabel]
	if root == "" {
		return "", nil, fmt.Errorf("image %s carries no %s label", r.ref, rootLabel)
	}

	layers, err := img.Layers()
	if err != nil {
		return "", nil, fmt.Errorf("get layers: %w", err)
	}

	var mu sync.Mutex
	objects := make(map[string][]byte)

	p := pool.New().WithMaxGoroutines(r.jobs).WithContext(ctx).WithCancelOnError()
	for _, layer := range layers {
		p.Go(func(ctx context.Context) error {
			rc, err := layer.Uncompressed()
			if err != nil {
				return fmt.Errorf("open layer: %w", err)
			}
			data, err := io.ReadAll(rc)
			if cerr := rc.Close(); cerr != nil {
				return fmt.Errorf("close layer: %w", cerr)
			}
			if err != nil {
				return fmt.Errorf("read layer: %w", err)
			}

			unpacked, err := unpackLayer(data)
			if err != nil {
				return fmt.Errorf("unpack layer: %w", err)
			}

			mu.Lock()
			for value, payload := range unpacked {
				objects[value] = payload
			}
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return "", nil, err
	}

	return root, objects, nil
}

func (r *Registry) remoteOptions() []ociremote.Option {
	if r.auth != nil {
		username, password, err := r.auth.Authenticate(r.Registry())
		if err == nil && username != "" {
			return []ociremote.Option{ociremote.WithAuth(&authn.Basic{
				Username: username,
				Password: password,
			})}
		}
	}
	return []ociremote.Option{ociremote.WithAuthFromKeychain(authn.DefaultKeychain)}
}

func retry[T any](ctx context.Context, maxAttempts int, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := range maxAttempts {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < maxAttempts-1 {
			delay := time.Duration(1<<i) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return zero, lastErr
}
