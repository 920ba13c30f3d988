package tensor

import "testing"

// FuzzContiguous checks the gate against first principles: on a contiguous
// layout the stride-aware walk must visit exactly the offsets 0..n-1, and
// the check must never panic on arbitrary shape/stride pairs.
func FuzzContiguous(f *testing.F) {
	f.Add(int8(4), int8(3), int8(1), int8(4))
	f.Add(int8(4), int8(3), int8(3), int8(1))
	f.Add(int8(0), int8(1), int8(1), int8(1))
	f.Add(int8(4), int8(4), int8(1), int8(8))

	f.Fuzz(func(t *testing.T, e0, e1, s0, s1 int8) {
		shape := []int64{int64(e0 & 7), int64(e1 & 7)} // keep walks small
		strides := []int64{int64(s0), int64(s1)}

		got := Contiguous(shape, strides)
		n := NumElements(shape)
		if n == 0 && !got {
			t.Fatalf("empty tensor %v/%v must be vacuously contiguous", shape, strides)
		}
		if n <= 0 {
			return
		}

		seen := make(map[int64]bool, n)
		ForEachOffset(shape, strides, func(off int64) { seen[off] = true })
		packed := int64(len(seen)) == n
		if packed {
			for i := int64(0); i < n; i++ {
				if !seen[i] {
					packed = false
					break
				}
			}
		}

		if got && !packed {
			t.Fatalf("Contiguous(%v, %v) = true but offsets are not 0..%d", shape, strides, n-1)
		}
		// The reverse does not hold: a permuted-but-complete offset set
		// (e.g. a transposed square) is still rejected by the gate.
	})
}
