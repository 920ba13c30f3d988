package runtime

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/object"
)

// NewObject allocates a refcounted object cell: a wire header followed by
// payloadSize bytes, 8-aligned, pinned, and rooted in the alive table. The
// returned pointer carries one owned reference unit; wrap it with
// object.FromOwned or release it with object.DecRef.
func (r *Runtime) NewObject(typeIndex abi.TypeIndex, payloadSize int) (unsafe.Pointer, error) {
	if payloadSize < 0 {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "negative payload size")
	}
	return r.newCell(typeIndex, payloadSize, r.cellToken)
}

func (r *Runtime) newCell(typeIndex abi.TypeIndex, payloadSize int, deleter uintptr) (unsafe.Pointer, error) {
	words := (abi.HeaderSize + payloadSize + 7) / 8
	c := &cell{buf: make([]uint64, words)}
	p := unsafe.Pointer(&c.buf[0])
	c.pin.Pin(&c.buf[0])

	hdr := object.Header(p)
	hdr.Refcount = abi.RefcountOne
	hdr.TypeIndex = typeIndex
	hdr.Deleter = deleter

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.pin.Unpin()
		return nil, errors.Closed(errors.PhaseAlloc, "runtime")
	}
	r.alive[p] = c
	r.mu.Unlock()

	Logger().Debug("object allocated",
		zap.Int32("type", int32(typeIndex)), zap.Int("payload", payloadSize))
	return p, nil
}

// releaseCell is the deleter behind every plain cell: drop the GC root and
// the pin once the strong count hits zero.
func (r *Runtime) releaseCell(p unsafe.Pointer) {
	r.mu.Lock()
	c, ok := r.alive[p]
	delete(r.alive, p)
	r.mu.Unlock()

	if !ok {
		Logger().Warn("deleter fired for unknown object", zap.Uintptr("ptr", uintptr(p)))
		return
	}
	c.pin.Unpin()
	Logger().Debug("object freed", zap.Int32("type", int32(object.Header(p).TypeIndex)))
}

// NewString allocates a heap string cell and returns an owned tagged value
// holding its single reference unit.
func (r *Runtime) NewString(s string) (abi.TaggedValue, error) {
	return r.newSpanCell(abi.TypeStr, []byte(s))
}

// NewBytes allocates a heap bytes cell, copying b.
func (r *Runtime) NewBytes(b []byte) (abi.TaggedValue, error) {
	return r.newSpanCell(abi.TypeBytes, b)
}

func (r *Runtime) newSpanCell(t abi.TypeIndex, data []byte) (abi.TaggedValue, error) {
	cellSize := int(unsafe.Sizeof(abi.BytesCell{}))
	p, err := r.NewObject(t, cellSize+len(data))
	if err != nil {
		return abi.None(), err
	}

	span := (*abi.BytesCell)(abi.Payload(p))
	*span = abi.BytesCell{}
	if len(data) > 0 {
		dst := unsafe.Add(abi.Payload(p), cellSize)
		copy(unsafe.Slice((*byte)(dst), len(data)), data)
		span.Span = abi.ByteSpan{Data: (*byte)(dst), Size: uint64(len(data))}
	}

	var tv abi.TaggedValue
	tv.SetObject(t, p)
	return tv, nil
}

// NewError allocates an error cell carrying a kind and a message.
func (r *Runtime) NewError(kind, message string) (abi.TaggedValue, error) {
	cellSize := int(unsafe.Sizeof(abi.ErrorCell{}))
	p, err := r.NewObject(abi.TypeError, cellSize+len(kind)+len(message))
	if err != nil {
		return abi.None(), err
	}

	ec := (*abi.ErrorCell)(abi.Payload(p))
	*ec = abi.ErrorCell{}
	text := unsafe.Add(abi.Payload(p), cellSize)
	if len(kind) > 0 {
		copy(unsafe.Slice((*byte)(text), len(kind)), kind)
		ec.Kind = abi.ByteSpan{Data: (*byte)(text), Size: uint64(len(kind))}
	}
	if len(message) > 0 {
		mp := unsafe.Add(text, len(kind))
		copy(unsafe.Slice((*byte)(mp), len(message)), message)
		ec.Message = abi.ByteSpan{Data: (*byte)(mp), Size: uint64(len(message))}
	}

	var tv abi.TaggedValue
	tv.SetObject(abi.TypeError, p)
	return tv, nil
}
