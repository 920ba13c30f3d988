package abi

// ObjectHeader prefixes every refcounted foreign object. The foreign runtime
// reads and writes this layout directly; field order and widths are fixed.
//
// Refcount packs the strong count in the low 32 bits; the high 32 bits are
// reserved for a weak count and are not interpreted by this library.
//
// Deleter is either a foreign C function pointer with signature
// void(*)(void* self), or a locally registered token (see object.RegisterDeleter);
// tokens are odd-valued and therefore never collide with aligned code pointers.
type ObjectHeader struct {
	Refcount  uint64
	TypeIndex TypeIndex
	_         uint32
	Deleter   uintptr
}

// Refcount packing.
const (
	StrongMask  uint64 = 1<<32 - 1
	WeakShift          = 32
	RefcountOne uint64 = 1 // one strong unit
)

// StrongCount extracts the strong count from a combined refcount word.
func StrongCount(combined uint64) uint32 { return uint32(combined & StrongMask) }

// HeaderSize is the byte size of ObjectHeader on the wire.
const HeaderSize = 24
