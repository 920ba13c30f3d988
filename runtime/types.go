package runtime

import (
	"sync"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
)

// typeTable is the built-in type registry: static indices pre-seeded,
// dynamic registration append-only starting at TypeDynamicBegin.
type typeTable struct {
	mu      sync.RWMutex
	byKey   map[string]abi.TypeIndex
	byIndex map[abi.TypeIndex]string
	next    abi.TypeIndex
}

var staticTypes = map[string]abi.TypeIndex{
	"None":       abi.TypeNone,
	"Int":        abi.TypeInt,
	"Bool":       abi.TypeBool,
	"Float":      abi.TypeFloat,
	"OpaquePtr":  abi.TypeOpaquePtr,
	"DataType":   abi.TypeDataType,
	"Device":     abi.TypeDevice,
	"SmallStr":   abi.TypeSmallStr,
	"SmallBytes": abi.TypeSmallBytes,
	"Object":     abi.TypeObject,
	"Str":        abi.TypeStr,
	"Bytes":      abi.TypeBytes,
	"Error":      abi.TypeError,
	"Function":   abi.TypeFunction,
	"Tensor":     abi.TypeTensor,
}

func newTypeTable() *typeTable {
	t := &typeTable{
		byKey:   make(map[string]abi.TypeIndex, len(staticTypes)*2),
		byIndex: make(map[abi.TypeIndex]string, len(staticTypes)*2),
		next:    abi.TypeDynamicBegin,
	}
	for key, idx := range staticTypes {
		t.byKey[key] = idx
		t.byIndex[idx] = key
	}
	return t
}

// TypeIndexFor resolves a type key, registering unknown keys dynamically.
// Indices are never reused; registration is append-only.
func (t *typeTable) TypeIndexFor(key string) (abi.TypeIndex, error) {
	if key == "" {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "empty type key")
	}

	t.mu.RLock()
	idx, ok := t.byKey[key]
	t.mu.RUnlock()
	if ok {
		return idx, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if idx, ok := t.byKey[key]; ok {
		return idx, nil
	}
	idx = t.next
	t.next++
	t.byKey[key] = idx
	t.byIndex[idx] = key
	return idx, nil
}

// TypeKeyFor resolves an index back to its key.
func (t *typeTable) TypeKeyFor(index abi.TypeIndex) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	key, ok := t.byIndex[index]
	if !ok {
		return "", errors.UnknownType(errors.PhaseRuntime, int32(index))
	}
	return key, nil
}
