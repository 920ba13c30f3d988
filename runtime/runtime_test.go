package runtime

import (
	stderrors "errors"
	"fmt"
	goruntime "runtime"
	"testing"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/object"
	"github.com/crossrt/ffi-runtime/value"
)

func TestObjectLifecycle(t *testing.T) {
	r := New()

	p, err := r.NewObject(abi.TypeObject, 16)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}
	if got := r.LiveObjects(); got != 1 {
		t.Fatalf("LiveObjects = %d, want 1", got)
	}

	h, err := object.FromOwned(p, abi.TypeObject)
	if err != nil {
		t.Fatalf("FromOwned: %v", err)
	}
	if n, _ := h.StrongCount(); n != 1 {
		t.Fatalf("strong count = %d, want 1", n)
	}

	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := r.LiveObjects(); got != 0 {
		t.Fatalf("LiveObjects after release = %d, want 0", got)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseReportsLeaks(t *testing.T) {
	r := New()

	p, err := r.NewObject(abi.TypeObject, 8)
	if err != nil {
		t.Fatalf("NewObject: %v", err)
	}

	err = r.Close()
	if err == nil {
		t.Fatal("Close with a live object should fail")
	}
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindInvalidInput}) {
		t.Fatalf("unexpected close error: %v", err)
	}

	// The deleter stays registered on a leaky close, so cleanup still works.
	object.DecRef(p)
	if got := r.LiveObjects(); got != 0 {
		t.Fatalf("LiveObjects = %d, want 0", got)
	}
}

func TestCloseIdempotent(t *testing.T) {
	r := New()
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestAllocAfterClose(t *testing.T) {
	r := New()
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := r.NewObject(abi.TypeObject, 8); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseAlloc, Kind: errors.KindClosed}) {
		t.Fatalf("alloc after close: got %v, want closed", err)
	}
}

func TestStringCell(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	const s = "a string long enough to need a heap cell"
	tv, err := r.NewString(s)
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	a := value.Own(tv)

	v, err := a.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.Type() != abi.TypeStr {
		t.Fatalf("type = %d, want TypeStr", v.Type())
	}
	got, err := v.Str()
	if err != nil {
		t.Fatalf("Str: %v", err)
	}
	if got != s {
		t.Fatalf("Str = %q, want %q", got, s)
	}

	a.Release()
	if n := r.LiveObjects(); n != 0 {
		t.Fatalf("LiveObjects = %d, want 0", n)
	}
}

func TestEmptyStringCell(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	tv, err := r.NewString("")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	a := value.Own(tv)
	v, _ := a.View()
	got, err := v.Str()
	if err != nil {
		t.Fatalf("Str: %v", err)
	}
	if got != "" {
		t.Fatalf("Str = %q, want empty", got)
	}
	a.Release()
}

func TestBytesCell(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	tv, err := r.NewBytes(payload)
	if err != nil {
		t.Fatalf("NewBytes: %v", err)
	}
	a := value.Own(tv)

	v, _ := a.View()
	got, err := v.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("len = %d, want %d", len(got), len(payload))
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], payload[i])
		}
	}

	// The cell holds a copy, not an alias of the input.
	payload[0] = 0xff
	got, _ = v.Bytes()
	if got[0] != 0xde {
		t.Fatal("bytes cell aliases caller memory")
	}
	a.Release()
}

func TestErrorCellRoundTrip(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	tv, err := r.NewError("ValueError", "dimension out of range")
	if err != nil {
		t.Fatalf("NewError: %v", err)
	}
	a := value.Own(tv)

	v, _ := a.View()
	decoded := r.ErrorFromValue(v)
	fe, ok := decoded.(*errors.Error)
	if !ok {
		t.Fatalf("decoded error type %T", decoded)
	}
	if fe.Kind != errors.KindForeign {
		t.Fatalf("kind = %s, want foreign_error", fe.Kind)
	}
	if fe.Got != "ValueError" {
		t.Fatalf("foreign kind = %q, want ValueError", fe.Got)
	}
	if fe.Detail != "dimension out of range" {
		t.Fatalf("message = %q", fe.Detail)
	}
	a.Release()
}

func TestErrorFromValueRejectsNonError(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	var tv abi.TaggedValue
	tv.SetInt64(7)
	err := r.ErrorFromValue(value.ViewOf(tv))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConvert, Kind: errors.KindTypeMismatch}) {
		t.Fatalf("got %v, want type_mismatch", err)
	}
}

func TestRaisedState(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	if r.PeekRaised() != nil {
		t.Fatal("fresh runtime has a raised error")
	}

	want := errors.InvalidInput(errors.PhaseCallback, "boom")
	r.Raise(want)
	if got := r.PeekRaised(); got != want {
		t.Fatalf("Peek = %v, want %v", got, want)
	}
	if got := r.MoveRaised(); got != want {
		t.Fatalf("Move = %v, want %v", got, want)
	}
	if r.PeekRaised() != nil {
		t.Fatal("Move did not clear the raised state")
	}
}

func TestRaisedValueMaterialization(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	r.Raise(errors.InvalidInput(errors.PhaseCallback, "bad argument"))
	a, err := r.RaisedValue()
	if err != nil {
		t.Fatalf("RaisedValue: %v", err)
	}
	if a.Type() != abi.TypeError {
		t.Fatalf("type = %d, want TypeError", a.Type())
	}
	if r.PeekRaised() != nil {
		t.Fatal("materialization did not clear the raised state")
	}

	v, _ := a.View()
	fe := r.ErrorFromValue(v).(*errors.Error)
	if fe.Got != string(errors.KindInvalidInput) {
		t.Fatalf("carried kind = %q, want %q", fe.Got, errors.KindInvalidInput)
	}
	a.Release()

	// Nothing raised: an owned None, no allocation.
	none, err := r.RaisedValue()
	if err != nil {
		t.Fatalf("RaisedValue (empty): %v", err)
	}
	if none.Type() != abi.TypeNone {
		t.Fatalf("type = %d, want TypeNone", none.Type())
	}
}

func TestTypeTableStatics(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	cases := []struct {
		key  string
		want abi.TypeIndex
	}{
		{"None", abi.TypeNone},
		{"Int", abi.TypeInt},
		{"Float", abi.TypeFloat},
		{"Object", abi.TypeObject},
		{"Str", abi.TypeStr},
		{"Function", abi.TypeFunction},
		{"Tensor", abi.TypeTensor},
	}
	for _, c := range cases {
		idx, err := r.TypeIndexFor(c.key)
		if err != nil {
			t.Fatalf("TypeIndexFor(%q): %v", c.key, err)
		}
		if idx != c.want {
			t.Fatalf("TypeIndexFor(%q) = %d, want %d", c.key, idx, c.want)
		}
		key, err := r.TypeKeyFor(idx)
		if err != nil {
			t.Fatalf("TypeKeyFor(%d): %v", idx, err)
		}
		if key != c.key {
			t.Fatalf("TypeKeyFor(%d) = %q, want %q", idx, key, c.key)
		}
	}
}

func TestTypeTableDynamic(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	first, err := r.TypeIndexFor("mylib.Graph")
	if err != nil {
		t.Fatalf("TypeIndexFor: %v", err)
	}
	if first < abi.TypeDynamicBegin {
		t.Fatalf("dynamic index %d below TypeDynamicBegin", first)
	}

	again, _ := r.TypeIndexFor("mylib.Graph")
	if again != first {
		t.Fatalf("re-registration changed index: %d vs %d", again, first)
	}

	other, _ := r.TypeIndexFor("mylib.Node")
	if other == first {
		t.Fatal("distinct keys share an index")
	}

	key, err := r.TypeKeyFor(first)
	if err != nil || key != "mylib.Graph" {
		t.Fatalf("TypeKeyFor = %q, %v", key, err)
	}

	if _, err := r.TypeKeyFor(abi.TypeDynamicBegin + 1000); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRuntime, Kind: errors.KindUnknownType}) {
		t.Fatalf("unknown index: got %v, want unknown_type", err)
	}
	if _, err := r.TypeIndexFor(""); err == nil {
		t.Fatal("empty key accepted")
	}
}

func TestCellsSurviveGC(t *testing.T) {
	r := New()
	defer mustClose(t, r)

	handles := make([]*object.Handle, 0, 64)
	for i := 0; i < 64; i++ {
		tv, err := r.NewString(fmt.Sprintf("cell payload number %d with some length", i))
		if err != nil {
			t.Fatalf("NewString: %v", err)
		}
		h, err := object.FromOwned(tv.Ptr(), tv.Type)
		if err != nil {
			t.Fatalf("FromOwned: %v", err)
		}
		handles = append(handles, h)
	}

	goruntime.GC()
	goruntime.GC()

	for i, h := range handles {
		if n, err := h.StrongCount(); err != nil || n != 1 {
			t.Fatalf("handle %d: count = %d, err = %v", i, n, err)
		}
		if err := h.Release(); err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
	}
	if n := r.LiveObjects(); n != 0 {
		t.Fatalf("LiveObjects = %d, want 0", n)
	}
}

func mustClose(t *testing.T, r *Runtime) {
	t.Helper()
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
