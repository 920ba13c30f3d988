package tensor

import (
	"sync"
	"unsafe"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
)

// Backend is the per-device buffer-access capability. One implementation
// exists per device kind; the descriptor's device field selects it, never
// runtime inspection of the host value.
type Backend interface {
	// Kind is the device kind this backend serves.
	Kind() abi.DeviceKind
	// Bytes returns a zero-copy flat byte view over a contiguous tensor's
	// buffer. Must fail with a contiguity error on any non-packed layout
	// rather than compute wrong offsets.
	Bytes(t *abi.Tensor) ([]byte, error)
}

var backends struct {
	mu sync.RWMutex
	m  map[abi.DeviceKind]Backend
}

func init() {
	backends.m = map[abi.DeviceKind]Backend{
		abi.DeviceCPU: cpuBackend{},
	}
}

// RegisterBackend installs a device backend, replacing any previous one for
// the same kind. GPU vendor integrations call this at init.
func RegisterBackend(b Backend) {
	backends.mu.Lock()
	defer backends.mu.Unlock()
	backends.m[b.Kind()] = b
}

// BackendFor returns the backend serving a device kind.
func BackendFor(kind abi.DeviceKind) (Backend, error) {
	backends.mu.RLock()
	defer backends.mu.RUnlock()

	b, ok := backends.m[kind]
	if !ok {
		return nil, errors.NotFound(errors.PhaseImport, "device backend", kind.String())
	}
	return b, nil
}

// cpuBackend provides flat access to host-memory tensors.
type cpuBackend struct{}

func (cpuBackend) Kind() abi.DeviceKind { return abi.DeviceCPU }

func (cpuBackend) Bytes(t *abi.Tensor) ([]byte, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}
	if t.Device.Kind != abi.DeviceCPU {
		return nil, errors.DeviceMismatch(errors.PhaseImport, t.Device.Kind.String(), abi.DeviceCPU.String())
	}

	shape := t.ShapeSlice()
	strides := t.StridesSlice()
	if strides == nil && t.NDim > 0 {
		strides = PackedStrides(shape) // nil strides mean packed by convention
	}
	if !Contiguous(shape, strides) {
		return nil, errors.NotContiguous(errors.PhaseImport, shape, strides)
	}

	n := NumElements(shape)
	if n == 0 {
		return nil, nil
	}
	size := n * t.DType.ElemBytes()
	base := unsafe.Add(t.Data, t.ByteOffset)
	return unsafe.Slice((*byte)(base), size), nil
}
