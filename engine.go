package castor

import (
	"context"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Engine is the hashing and transfer engine for one backend instance. It
// owns an explicit reference to its fingerprint cache and artifact store;
// both may be shared with other engines pointing at the same physical
// storage.
type Engine struct {
	backend Backend
	desc    *Descriptor
	fps     FingerprintCache
	store   ArtifactStore
	log     *zap.Logger
	rep     Reporter
}

// Option configures an Engine.
type Option func(*Engine)

// WithDescriptor overrides the backend descriptor.
func WithDescriptor(desc *Descriptor) Option {
	return func(e *Engine) { e.desc = desc }
}

// WithFingerprintCache sets the fingerprint cache. Default is
// NopFingerprints (caching off).
func WithFingerprintCache(c FingerprintCache) Option {
	return func(e *Engine) { e.fps = c }
}

// WithArtifactStore sets the cache-store. Default is an in-memory store.
func WithArtifactStore(s ArtifactStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithReporter sets the progress reporter. Default discards all events.
func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.rep = r }
}

// New creates an engine for the given backend. Every dependency is
// explicit: no engine shares default state with another unless the caller
// passes the same instance to both.
func New(b Backend, opts ...Option) *Engine {
	e := &Engine{
		backend: b,
		desc:    NewDescriptor(b.Scheme(), AlgoSHA256),
		fps:     NopFingerprints{},
		store:   NewMemArtifacts(),
		log:     zap.NewNop(),
		rep:     nopReporter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the engine's backend.
func (e *Engine) Backend() Backend { return e.backend }

// Descriptor returns the engine's backend descriptor.
func (e *Engine) Descriptor() *Descriptor { return e.desc }

// hashPool builds the bounded worker pool for hash computation. The first
// worker error cancels the pool context so pending units never start.
func (e *Engine) hashPool(ctx context.Context) *pool.ContextPool {
	return pool.New().
		WithMaxGoroutines(e.desc.HashJobs).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
}

// transferPool builds the bounded worker pool for directory transfers.
func (e *Engine) transferPool(ctx context.Context, jobs int) *pool.ContextPool {
	if jobs <= 0 {
		jobs = e.desc.Jobs
	}
	return pool.New().
		WithMaxGoroutines(jobs).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
}

// withSession acquires the fingerprint cache for the duration of fn when
// the cache supports scoped acquisition. Release runs on every exit path.
func (e *Engine) withSession(fn func() error) error {
	s, ok := e.fps.(Sessioned)
	if !ok {
		return fn()
	}
	if err := s.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := s.Release(); err != nil {
			e.log.Warn("fingerprint cache release failed", zap.Error(err))
		}
	}()
	return fn()
}
