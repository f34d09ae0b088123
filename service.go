package restkit

import (
	"github.com/rs/zerolog"
)

// DefaultBatchLimit is the ceiling on operations per batch request unless
// overridden with WithBatchLimit.
const DefaultBatchLimit = 25

// Engine serves CRUD operations for every registered entity through one
// generic dispatcher. It owns no mutable state beyond the frozen registry,
// so concurrent requests never share authorization, validation or query
// state.
type Engine struct {
	registry *Registry
	store    Store
	resolver AccessResolver
	gate     *Gatekeeper
	composer *Composer
	logger   zerolog.Logger

	batchLimit int
	batchAllow map[string]bool // nil allows every registered entity
}

// Option configures the Engine.
type Option func(*Engine)

// New creates an Engine and freezes the registry.
//
// Example:
//
//	registry := restkit.NewRegistry()
//	registry.DefineEntity("posts").Fillable("title").StoreRules("title")
//	engine := restkit.New(registry, store,
//	    restkit.WithResolver(resolver),
//	    restkit.WithLogger(logger),
//	)
func New(registry *Registry, store Store, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		store:      store,
		resolver:   NewStaticResolver(),
		logger:     zerolog.Nop(),
		batchLimit: DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.gate = NewGatekeeper(registry, e.resolver)
	e.composer = NewComposer(registry)
	registry.Freeze()
	return e
}

// WithResolver sets the actor/role collaborator. Without one, every
// capability check denies (the default resolver grants nothing).
func WithResolver(resolver AccessResolver) Option {
	return func(e *Engine) {
		e.resolver = resolver
	}
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithBatchLimit sets the ceiling on operations per batch request.
func WithBatchLimit(n int) Option {
	return func(e *Engine) {
		e.batchLimit = n
	}
}

// WithBatchEntities restricts the batch endpoint to the named entities.
func WithBatchEntities(slugs ...string) Option {
	return func(e *Engine) {
		e.batchAllow = make(map[string]bool, len(slugs))
		for _, slug := range slugs {
			e.batchAllow[slug] = true
		}
	}
}

// Registry returns the entity registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Store returns the storage collaborator.
func (e *Engine) Store() Store {
	return e.store
}
