package tensor

import (
	stderrors "errors"
	"testing"
	"unsafe"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
)

func TestViewDescriptor(t *testing.T) {
	buf := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	v, err := FromSlice(buf, 4, 3)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	if !v.Contiguous() {
		t.Fatal("packed view must be contiguous")
	}

	err = v.WithDescriptor(func(d *abi.Tensor) error {
		if d.Data != unsafe.Pointer(&buf[0]) {
			t.Fatal("descriptor does not alias the buffer")
		}
		if d.NDim != 2 || d.DType != abi.Float32 || d.Device.Kind != abi.DeviceCPU {
			t.Fatalf("descriptor metadata: %+v", d)
		}
		shape := d.ShapeSlice()
		strides := d.StridesSlice()
		if shape[0] != 4 || shape[1] != 3 || strides[0] != 1 || strides[1] != 4 {
			t.Fatalf("shape %v strides %v", shape, strides)
		}
		// read through the descriptor while the pin holds
		got := *(*float32)(unsafe.Add(d.Data, 5*4))
		if got != 5 {
			t.Fatalf("element read through descriptor = %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestViewStridedBounds(t *testing.T) {
	buf := make([]float32, 16)

	if _, err := FromSliceStrided(buf, []int64{4, 4}, []int64{1, 4}); err != nil {
		t.Fatalf("in-bounds view rejected: %v", err)
	}
	// strides reaching past the buffer are rejected up front
	if _, err := FromSliceStrided(buf, []int64{4, 4}, []int64{1, 8}); err == nil {
		t.Fatal("out-of-bounds strides accepted")
	}
	if _, err := FromSliceStrided(buf, []int64{4}, []int64{1, 2}); err == nil {
		t.Fatal("rank mismatch accepted")
	}
	// a negative stride walks before the buffer from its first-element origin
	if _, err := FromSliceStrided(buf, []int64{4}, []int64{-1}); err == nil {
		t.Fatal("negative-reach strides accepted")
	}
	if _, err := FromSliceStrided(buf, []int64{4, 4}, []int64{1, -4}); err == nil {
		t.Fatal("mixed negative-reach strides accepted")
	}
}

func TestViewRejectsReadBeforeBuffer(t *testing.T) {
	buf := []float32{0, 1, 2, 3}

	_, err := FromSliceStrided(buf, []int64{4}, []int64{-1})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseExport, Kind: errors.KindOutOfRange}) {
		t.Fatalf("got %v, want out_of_range", err)
	}

	// the origin is element 0 of data, so any negative reach lands before
	// the buffer; a positive strided layout within bounds still passes
	if _, err := FromSliceStrided(buf, []int64{2, 2}, []int64{1, 2}); err != nil {
		t.Fatalf("in-bounds strided layout rejected: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	buf := []float32{1, 2, 3, 4, 5, 6}
	v, err := FromSlice(buf, 6)
	if err != nil {
		t.Fatal(err)
	}

	producerDone := false
	capsule, err := Export(v, WithReleaseFunc(func() { producerDone = true }))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if LiveExports() != 1 {
		t.Fatalf("LiveExports = %d, want 1", LiveExports())
	}

	m, err := Import(capsule)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	// zero-copy: mutations through the original slice are visible
	flat, err := m.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	buf[0] = 42
	if got := *(*float32)(unsafe.Pointer(&flat[0])); got != 42 {
		t.Fatalf("flat view not aliasing buffer: %v", got)
	}

	if err := m.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if !producerDone {
		t.Fatal("producer release callback did not fire")
	}
	if LiveExports() != 0 {
		t.Fatalf("LiveExports = %d after release, want 0", LiveExports())
	}

	err = m.Release()
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseImport, Kind: errors.KindAlreadyReleased}) {
		t.Fatalf("second Release = %v, want already_released", err)
	}
	if _, err := m.Tensor(); err == nil {
		t.Fatal("Tensor after Release must fail")
	}
}

func TestNonContiguousRejectedByFlatAPI(t *testing.T) {
	// a 4x4 sub-block of an 8-wide buffer: strides [1, 8]
	buf := make([]float32, 32)
	v, err := FromSliceStrided(buf, []int64{4, 4}, []int64{1, 8})
	if err != nil {
		t.Fatal(err)
	}
	if v.Contiguous() {
		t.Fatal("sub-block must not be contiguous")
	}

	capsule, err := Export(v)
	if err != nil {
		t.Fatalf("Export of non-contiguous view must succeed (consumer decides): %v", err)
	}
	m, err := Import(capsule)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()

	_, err = m.Bytes()
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseImport, Kind: errors.KindNotContiguous}) {
		t.Fatalf("flat access = %v, want not_contiguous", err)
	}

	// the copying fallback gathers the right elements
	for i := range buf {
		buf[i] = float32(i)
	}
	packed, err := m.CopyBytes()
	if err != nil {
		t.Fatalf("CopyBytes: %v", err)
	}
	if len(packed) != 4*4*4 {
		t.Fatalf("packed size = %d, want 64", len(packed))
	}
	first := *(*float32)(unsafe.Pointer(&packed[0]))
	second := *(*float32)(unsafe.Pointer(&packed[4]))
	fifth := *(*float32)(unsafe.Pointer(&packed[16]))
	if first != 0 || second != 1 || fifth != 8 {
		t.Fatalf("gather order wrong: %v %v %v", first, second, fifth)
	}
}

func TestImportVersionGate(t *testing.T) {
	buf := []float32{1}
	v, _ := FromSlice(buf, 1)
	capsule, err := Export(v)
	if err != nil {
		t.Fatal(err)
	}

	capsule.Version.Major = abi.VersionMajor + 1
	_, err = Import(capsule)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseImport, Kind: errors.KindVersionMismatch}) {
		t.Fatalf("Import = %v, want version_mismatch", err)
	}

	// restore and consume properly
	capsule.Version.Major = abi.VersionMajor
	m, err := Import(capsule)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Release(); err != nil {
		t.Fatal(err)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	if _, err := Import(nil); err == nil {
		t.Fatal("nil capsule accepted")
	}

	capsule := &abi.ManagedTensorVersioned{
		Version: abi.PackVersion{Major: abi.VersionMajor},
		Tensor:  abi.Tensor{NDim: -2, Device: abi.Device{Kind: abi.DeviceCPU}, DType: abi.Float32},
	}
	_, err := Import(capsule)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseImport, Kind: errors.KindMalformed}) {
		t.Fatalf("Import = %v, want malformed_descriptor", err)
	}
}

func TestReadOnlyFlag(t *testing.T) {
	buf := []float32{1, 2}
	v, _ := FromSlice(buf, 2)
	capsule, err := Export(v, WithReadOnly())
	if err != nil {
		t.Fatal(err)
	}
	m, err := Import(capsule)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()

	if !m.ReadOnly() {
		t.Fatal("read-only flag lost in transit")
	}
}

func TestBackendSelection(t *testing.T) {
	if _, err := BackendFor(abi.DeviceCPU); err != nil {
		t.Fatalf("CPU backend missing: %v", err)
	}
	_, err := BackendFor(abi.DeviceMetal)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseImport, Kind: errors.KindNotFound}) {
		t.Fatalf("unregistered backend = %v, want not_found", err)
	}

	// a cuda descriptor reaching the CPU backend is a device error, surfaced
	// before any dereference
	shape := []int64{1}
	strides := []int64{1}
	d := &abi.Tensor{
		Data:    unsafe.Pointer(&shape[0]), // any non-nil pointer; must not be read
		Device:  abi.Device{Kind: abi.DeviceCUDA},
		NDim:    1,
		DType:   abi.Float32,
		Shape:   &shape[0],
		Strides: &strides[0],
	}
	b, _ := BackendFor(abi.DeviceCPU)
	if _, err := b.Bytes(d); err == nil {
		t.Fatal("CPU backend accepted a cuda descriptor")
	}
}

func TestEmptyTensorExchange(t *testing.T) {
	v, err := FromSlice([]float32{}, 0)
	if err != nil {
		t.Fatalf("empty view: %v", err)
	}
	if !v.Contiguous() {
		t.Fatal("empty view must be vacuously contiguous")
	}
	err = v.WithDescriptor(func(d *abi.Tensor) error {
		if d.Data != nil {
			t.Fatal("empty view must carry nil data")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
