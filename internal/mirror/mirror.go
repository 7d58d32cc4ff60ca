// Package mirror syncs a local artifact store with an OCI registry.
package mirror

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aweris/castor"
	"github.com/aweris/castor/internal/remote"
	"github.com/aweris/castor/internal/store"
)

// Mirror pairs a local artifact store with one remote registry image.
type Mirror struct {
	store    *store.Local
	registry *remote.Registry
	log      *zap.Logger
}

// New creates a mirror. A nil logger disables logging.
func New(s *store.Local, r *remote.Registry, log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{store: s, registry: r, log: log}
}

// Push uploads every stored artifact, advertising root as the current
// root directory hash.
func (m *Mirror) Push(ctx context.Context, root castor.Hash) error {
	values, err := m.store.Objects()
	if err != nil {
		return fmt.Errorf("enumerate objects: %w", err)
	}

	objects := make(map[string][]byte, len(values))
	for _, value := range values {
		data, err := m.store.Get(value)
		if err != nil {
			return fmt.Errorf("load object %s: %w", value, err)
		}
		objects[value] = data
	}

	m.log.Info("pushing artifacts",
		zap.String("registry", m.registry.String()),
		zap.Int("objects", len(objects)),
		zap.String("root", root.Value))

	return m.registry.Push(ctx, root.Value, objects)
}

// Pull downloads the registry image into the local store and returns the
// advertised root directory hash. Already present objects are skipped by
// the store's content addressing.
func (m *Mirror) Pull(ctx context.Context, algo string) (castor.Hash, error) {
	rootValue, objects, err := m.registry.Pull(ctx)
	if err != nil {
		return castor.Hash{}, err
	}

	for value, data := range objects {
		if err := m.store.Put(value, data); err != nil {
			return castor.Hash{}, fmt.Errorf("store object %s: %w", value, err)
		}
	}

	root := castor.NewHash(algo, rootValue)
	if root.IsDir() {
		m.store.RegisterManifest(root)
	}

	m.log.Info("pulled artifacts",
		zap.String("registry", m.registry.String()),
		zap.Int("objects", len(objects)),
		zap.String("root", root.Value))

	return root, nil
}
