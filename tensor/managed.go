package tensor

import (
	"runtime"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/object"
)

// export bookkeeping: capsules stay rooted and their buffers pinned from
// Export until the consumer's deleter fires.
var exports = struct {
	mu   sync.Mutex
	live map[*abi.ManagedTensorVersioned]*exportState
}{live: make(map[*abi.ManagedTensorVersioned]*exportState)}

type exportState struct {
	pin       runtime.Pinner
	token     uintptr
	onRelease func()
}

// ExportOption configures Export.
type ExportOption func(*exportConfig)

type exportConfig struct {
	readOnly  bool
	onRelease func()
}

// WithReadOnly marks the exported buffer immutable for the consumer.
func WithReadOnly() ExportOption {
	return func(c *exportConfig) { c.readOnly = true }
}

// WithReleaseFunc registers a producer-side notification invoked after the
// consumer's deleter runs.
func WithReleaseFunc(fn func()) ExportOption {
	return func(c *exportConfig) { c.onRelease = fn }
}

// Export wraps the view's buffer in a versioned capsule for cross-call
// sharing. The buffer and descriptor arrays are pinned and rooted until the
// consumer invokes the capsule's deleter exactly once; the data itself is
// never copied.
func Export(v *View, opts ...ExportOption) (*abi.ManagedTensorVersioned, error) {
	var cfg exportConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	state := &exportState{onRelease: cfg.onRelease}

	capsule := &abi.ManagedTensorVersioned{
		Version: abi.PackVersion{Major: abi.VersionMajor, Minor: abi.VersionMinor},
		Tensor: abi.Tensor{
			Data:   v.data,
			Device: v.device,
			NDim:   int32(len(v.shape)),
			DType:  v.dtype,
		},
	}
	if cfg.readOnly {
		capsule.Flags |= abi.FlagReadOnly
	}
	if len(v.shape) > 0 {
		capsule.Tensor.Shape = &v.shape[0]
		capsule.Tensor.Strides = &v.strides[0]
		state.pin.Pin(&v.shape[0])
		state.pin.Pin(&v.strides[0])
	}
	if v.base != nil {
		state.pin.Pin(v.base)
	}
	state.pin.Pin(capsule)
	capsule.ManagerCtx = unsafe.Pointer(capsule)

	state.token = object.RegisterDeleter(func(p unsafe.Pointer) {
		releaseExport((*abi.ManagedTensorVersioned)(p))
	})
	capsule.Deleter = state.token

	exports.mu.Lock()
	exports.live[capsule] = state
	exports.mu.Unlock()

	Logger().Debug("tensor exported",
		zap.Int64s("shape", v.shape), zap.Bool("read_only", cfg.readOnly))
	return capsule, nil
}

func releaseExport(capsule *abi.ManagedTensorVersioned) {
	exports.mu.Lock()
	state, ok := exports.live[capsule]
	delete(exports.live, capsule)
	exports.mu.Unlock()

	if !ok {
		Logger().Warn("capsule deleter fired twice or on foreign capsule")
		return
	}
	state.pin.Unpin()
	object.UnregisterDeleter(state.token)
	if state.onRelease != nil {
		state.onRelease()
	}
	Logger().Debug("tensor export released")
}

// LiveExports returns the number of capsules whose consumers have not yet
// released them. Leak accounting for tests and shutdown checks.
func LiveExports() int {
	exports.mu.Lock()
	defer exports.mu.Unlock()
	return len(exports.live)
}

// Managed is a consumer-held reference to an imported capsule. Release
// invokes the producer's deleter exactly once.
type Managed struct {
	capsule  *abi.ManagedTensorVersioned
	released bool
}

// Import consumes a capsule: the protocol version and descriptor are
// validated before any memory access, and the returned Managed owns the
// consumer's release obligation.
func Import(c *abi.ManagedTensorVersioned) (*Managed, error) {
	if c == nil {
		return nil, errors.NilPointer(errors.PhaseImport, "capsule")
	}
	if c.Version.Major != abi.VersionMajor {
		return nil, errors.VersionMismatch(errors.PhaseImport, c.Version.Major, abi.VersionMajor)
	}
	if err := Validate(&c.Tensor); err != nil {
		return nil, err
	}
	Logger().Debug("tensor imported", zap.Int64s("shape", c.Tensor.ShapeSlice()))
	return &Managed{capsule: c}, nil
}

// Tensor returns the descriptor. Valid until Release.
func (m *Managed) Tensor() (*abi.Tensor, error) {
	if m.released {
		return nil, errors.AlreadyReleased(errors.PhaseImport, "managed tensor")
	}
	return &m.capsule.Tensor, nil
}

// ReadOnly reports the producer's immutability flag.
func (m *Managed) ReadOnly() bool { return m.capsule.ReadOnly() }

// Release invokes the capsule's deleter, exactly once. A second Release is
// an error, not a second deleter call.
func (m *Managed) Release() error {
	if m.released {
		return errors.AlreadyReleased(errors.PhaseImport, "managed tensor")
	}
	m.released = true
	object.InvokeDeleter(m.capsule.Deleter, unsafe.Pointer(m.capsule))
	return nil
}

// Bytes returns a zero-copy flat view of the buffer through the device
// backend. Fails with a contiguity error on non-packed layouts and a
// backend error on devices without a registered backend.
func (m *Managed) Bytes() ([]byte, error) {
	t, err := m.Tensor()
	if err != nil {
		return nil, err
	}
	b, err := BackendFor(t.Device.Kind)
	if err != nil {
		return nil, err
	}
	return b.Bytes(t)
}

// CopyBytes gathers the tensor into a freshly allocated packed buffer,
// dimension 0 fastest. The fallback when the consumer requires contiguity
// but the layout fails the zero-copy gate. CPU tensors only.
func (m *Managed) CopyBytes() ([]byte, error) {
	t, err := m.Tensor()
	if err != nil {
		return nil, err
	}
	if t.Device.Kind != abi.DeviceCPU {
		return nil, errors.DeviceMismatch(errors.PhaseImport, t.Device.Kind.String(), abi.DeviceCPU.String())
	}
	if err := Validate(t); err != nil {
		return nil, err
	}

	shape := t.ShapeSlice()
	strides := t.StridesSlice()
	if strides == nil && t.NDim > 0 {
		strides = PackedStrides(shape)
	}

	elem := t.DType.ElemBytes()
	out := make([]byte, 0, NumElements(shape)*elem)
	base := unsafe.Add(t.Data, t.ByteOffset)
	ForEachOffset(shape, strides, func(off int64) {
		src := unsafe.Slice((*byte)(unsafe.Add(base, off*elem)), elem)
		out = append(out, src...)
	})
	return out, nil
}
