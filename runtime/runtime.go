package runtime

import (
	goruntime "runtime"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	ffiruntime "github.com/crossrt/ffi-runtime"
	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/callback"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/internal/debug"
	"github.com/crossrt/ffi-runtime/internal/errstore"
	"github.com/crossrt/ffi-runtime/object"
	"github.com/crossrt/ffi-runtime/tensor"
)

// Runtime is an in-process foreign runtime backed by Go memory. It
// implements the capability interfaces the core consumes: cell allocation,
// type registry, error sink.
type Runtime struct {
	mu        sync.Mutex
	alive     map[unsafe.Pointer]*cell
	globals   map[string]*object.Handle
	callbacks *callback.Registry
	types     ffiruntime.TypeRegistry
	raised    *errstore.Store
	cellToken uintptr // deleter for plain cells
	fnToken   uintptr // deleter for function cells: releases the slot too
	closed    bool
}

// cell is one runtime-allocated object: header + payload in a single
// 8-aligned block, pinned for its lifetime and rooted by the alive table.
type cell struct {
	buf []uint64
	pin goruntime.Pinner
}

// Option configures a Runtime.
type Option func(*config)

type config struct {
	logger           *zap.Logger
	callbackCapacity int
	types            ffiruntime.TypeRegistry
}

// WithLogger installs a logger on the runtime and its subsystems.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithInitialCallbackCapacity pre-sizes the callback slot pool.
func WithInitialCallbackCapacity(n int) Option {
	return func(c *config) { c.callbackCapacity = n }
}

// WithTypeRegistry substitutes an external type registry for the built-in
// table, for embedding against a foreign runtime that owns type identity.
func WithTypeRegistry(tr ffiruntime.TypeRegistry) Option {
	return func(c *config) { c.types = tr }
}

// New creates a runtime.
func New(opts ...Option) *Runtime {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger != nil {
		SetLogger(cfg.logger)
		callback.SetLogger(cfg.logger)
		tensor.SetLogger(cfg.logger)
	}

	r := &Runtime{
		alive:   make(map[unsafe.Pointer]*cell),
		globals: make(map[string]*object.Handle),
		raised:  errstore.New(),
		types:   cfg.types,
	}
	if r.types == nil {
		r.types = newTypeTable()
	}

	var cbOpts []callback.Option
	if cfg.callbackCapacity > 0 {
		cbOpts = append(cbOpts, callback.WithInitialCapacity(cfg.callbackCapacity))
	}
	r.callbacks = callback.NewRegistry(r, cbOpts...)

	r.cellToken = object.RegisterDeleter(r.releaseCell)
	r.fnToken = object.RegisterDeleter(r.releaseFunctionCell)
	return r
}

// TypeIndexFor resolves (registering if dynamic) a type key.
func (r *Runtime) TypeIndexFor(key string) (abi.TypeIndex, error) {
	return r.types.TypeIndexFor(key)
}

// TypeKeyFor resolves an index back to its key.
func (r *Runtime) TypeKeyFor(index abi.TypeIndex) (string, error) {
	return r.types.TypeKeyFor(index)
}

// LiveObjects reports how many runtime-allocated objects are still held.
func (r *Runtime) LiveObjects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alive)
}

// LiveCallbacks reports how many callback slots are still registered.
func (r *Runtime) LiveCallbacks() int { return r.callbacks.Live() }

// Close tears the runtime down. Global functions are released first; any
// object still alive afterwards is a leak, reported as an error and, in
// instrumented builds, a panic.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	globals := r.globals
	r.globals = nil
	r.mu.Unlock()

	for name, h := range globals {
		if err := h.Release(); err != nil {
			Logger().Warn("global release failed", zap.String("name", name), zap.Error(err))
		}
	}

	leaks := r.LiveObjects()
	debug.Assertf(leaks == 0, "runtime closed with %d live objects", leaks)
	if err := r.callbacks.Close(); err != nil {
		return err
	}

	if leaks > 0 {
		Logger().Warn("runtime closed with live objects", zap.Int("count", leaks))
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("%d objects still alive at close", leaks).
			Build()
	}

	object.UnregisterDeleter(r.cellToken)
	object.UnregisterDeleter(r.fnToken)
	return nil
}
