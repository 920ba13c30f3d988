package value

import (
	"sync"

	"github.com/crossrt/ffi-runtime/abi"
)

// Argument vectors are pooled so the common scalar call path stays
// allocation-free. A buffer that grew past poolMaxCap came from an unusually
// wide call and is left to the garbage collector instead of parking its
// capacity in the pool.
const (
	poolMaxCap  = 256 // TaggedValue elements
	poolInitCap = 8
)

var argvPool = sync.Pool{
	New: func() any {
		buf := make([]abi.TaggedValue, 0, poolInitCap)
		return &buf
	},
}

// GetArgv returns an empty argument buffer. Pair with PutArgv.
func GetArgv() *[]abi.TaggedValue {
	return argvPool.Get().(*[]abi.TaggedValue)
}

// PutArgv recycles a buffer's storage. Any owned references packed into it
// must already be released or transferred; only the memory is reused.
func PutArgv(buf *[]abi.TaggedValue) {
	if buf == nil || cap(*buf) > poolMaxCap {
		return
	}
	*buf = (*buf)[:0]
	argvPool.Put(buf)
}
