package callback

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	ffiruntime "github.com/crossrt/ffi-runtime"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/value"
)

// Func is a registered local callable. Arguments arrive as borrowed views
// valid only for the invocation; the result transfers ownership to the
// caller. Returning (nil, nil) means "no value".
type Func func(args []value.View) (*value.Any, error)

// Token identifies a registration to the foreign side: pointer-width,
// stable for the slot's lifetime, opaque. Zero is never a valid token.
type Token uintptr

// Registry is the slot pool rooting registered callables against
// collection. Insert, lookup, and release are each one critical section
// under a single mutex; the foreign runtime may drive them from any thread.
type Registry struct {
	slots    []slot
	freeList []int32
	sink     ffiruntime.ErrorSink
	mu       sync.Mutex
	closed   bool
}

type slot struct {
	fn    Func
	valid bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithInitialCapacity pre-sizes the slot pool.
func WithInitialCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.slots = make([]slot, 0, n)
		}
	}
}

// NewRegistry creates an empty slot pool. sink receives errors raised by
// trampoline invocations; it must not be nil.
func NewRegistry(sink ffiruntime.ErrorSink, opts ...Option) *Registry {
	r := &Registry{
		slots:    make([]slot, 0, 16),
		freeList: make([]int32, 0, 8),
		sink:     sink,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register pins fn into the pool and returns its token. Freed indices are
// reused before the pool grows.
func (r *Registry) Register(fn Func) (Token, error) {
	if fn == nil {
		return 0, errors.InvalidInput(errors.PhaseCallback, "nil callable")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errors.Closed(errors.PhaseCallback, "callback registry")
	}

	s := slot{fn: fn, valid: true}

	var idx int32
	if n := len(r.freeList); n > 0 {
		idx = r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		r.slots[idx] = s
	} else {
		idx = int32(len(r.slots))
		r.slots = append(r.slots, s)
	}

	tok := Token(idx) + 1
	Logger().Debug("callback registered", zap.Uintptr("token", uintptr(tok)))
	return tok, nil
}

// Lookup returns the callable for a still-registered token.
func (r *Registry) Lookup(tok Token) (Func, bool) {
	if tok == 0 {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := int(tok) - 1
	if idx < 0 || idx >= len(r.slots) || !r.slots[idx].valid {
		return nil, false
	}
	return r.slots[idx].fn, true
}

// Release removes the slot and returns its index to the free list, making
// the callable collectible and the token mintable again. Releasing an
// unknown or already-released token is a logic error, reported not crashed.
func (r *Registry) Release(tok Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := int(tok) - 1
	if tok == 0 || idx < 0 || idx >= len(r.slots) {
		return errors.NotFound(errors.PhaseCallback, "callback slot", tokenString(tok))
	}
	if !r.slots[idx].valid {
		return errors.AlreadyReleased(errors.PhaseCallback, "callback slot")
	}

	r.slots[idx] = slot{}
	r.freeList = append(r.freeList, int32(idx))
	Logger().Debug("callback released", zap.Uintptr("token", uintptr(tok)))
	return nil
}

// Delete is the deleter notification from the foreign side: release with a
// void return, logging instead of surfacing errors since the caller cannot
// receive them.
func (r *Registry) Delete(resource uintptr) {
	if err := r.Release(Token(resource)); err != nil {
		Logger().Warn("callback deleter on dead slot",
			zap.Uintptr("token", resource), zap.Error(err))
	}
}

// Live returns the number of registered, unreleased slots.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for i := range r.slots {
		if r.slots[i].valid {
			count++
		}
	}
	return count
}

// Close releases every slot and refuses further registrations.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.slots = nil
	r.freeList = nil
	return nil
}

func tokenString(tok Token) string {
	return fmt.Sprintf("%#x", uintptr(tok))
}
