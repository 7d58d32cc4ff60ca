// Package httpx implements a read-only HTTP backend: existence checks,
// single-object download and streamed content hashing. HTTP has no
// listing or write primitives, so directory operations and uploads fail
// with the engine's uniform NotSupported error.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aweris/castor"
)

const Scheme = "http"

// Backend adapts plain HTTP endpoints to the capability contract.
type Backend struct {
	client *http.Client
	algo   string
}

// New creates an HTTP backend. A nil client uses http.DefaultClient.
func New(client *http.Client) *Backend {
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{client: client, algo: castor.AlgoSHA256}
}

func (b *Backend) Scheme() string { return Scheme }

func url(loc castor.Location) string {
	return "http://" + loc.Path()
}

func (b *Backend) Exists(ctx context.Context, loc castor.Location) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url(loc), nil)
	if err != nil {
		return false, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", loc, err)
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// IsDir is always false: HTTP exposes no directory concept.
func (b *Backend) IsDir(ctx context.Context, loc castor.Location) (bool, error) {
	return false, nil
}

// WalkFiles is unsupported: HTTP cannot enumerate members.
func (b *Backend) WalkFiles(ctx context.Context, loc castor.Location) ([]castor.Location, error) {
	return nil, &castor.NotSupportedError{Op: "walk_files", Scheme: Scheme}
}

func (b *Backend) GetFileHash(ctx context.Context, loc castor.Location) (castor.Hash, error) {
	resp, err := b.get(ctx, loc)
	if err != nil {
		return castor.Hash{}, err
	}
	defer resp.Body.Close()

	sum, n, err := castor.SumReader(b.algo, resp.Body)
	if err != nil {
		return castor.Hash{}, fmt.Errorf("hash %s: %w", loc, err)
	}
	return castor.Hash{Algo: b.algo, Value: sum, Size: n}, nil
}

func (b *Backend) DownloadFile(ctx context.Context, from castor.Location, toPath string) error {
	resp, err := b.get(ctx, from)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.OpenFile(toPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *Backend) get(ctx context.Context, loc castor.Location) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url(loc), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", loc, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %s", loc, resp.Status)
	}
	return resp, nil
}
