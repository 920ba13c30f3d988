package callback

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/crossrt/ffi-runtime/abi"
	"github.com/crossrt/ffi-runtime/errors"
	"github.com/crossrt/ffi-runtime/value"
)

// capture sink for raised errors
type sink struct {
	mu   sync.Mutex
	errs []error
}

func (s *sink) Raise(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *sink) last() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

func noopFunc(args []value.View) (*value.Any, error) { return nil, nil }

func TestRegisterLookupRelease(t *testing.T) {
	r := NewRegistry(&sink{})

	tok, err := r.Register(noopFunc)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tok == 0 {
		t.Fatal("zero token")
	}
	if _, ok := r.Lookup(tok); !ok {
		t.Fatal("Lookup failed for live slot")
	}
	if r.Live() != 1 {
		t.Fatalf("Live = %d, want 1", r.Live())
	}

	if err := r.Release(tok); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := r.Lookup(tok); ok {
		t.Fatal("Lookup succeeded for released slot")
	}
	if r.Live() != 0 {
		t.Fatalf("Live = %d, want 0", r.Live())
	}

	err = r.Release(tok)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCallback, Kind: errors.KindAlreadyReleased}) {
		t.Fatalf("double Release = %v, want already_released", err)
	}
}

func TestGarbageToken(t *testing.T) {
	r := NewRegistry(&sink{})

	if _, err := r.Register(noopFunc); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// A token from a foreign caller can hold any bit pattern. Tokens whose
	// index falls outside the pool, including ones that wrap negative when
	// converted, report not_found instead of faulting.
	for _, tok := range []Token{Token(^uintptr(0)), Token(1 << 62), 99} {
		if _, ok := r.Lookup(tok); ok {
			t.Fatalf("Lookup(%#x) succeeded", uintptr(tok))
		}
		err := r.Release(tok)
		if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCallback, Kind: errors.KindNotFound}) {
			t.Fatalf("Release(%#x) = %v, want not_found", uintptr(tok), err)
		}
	}
}

func TestSlotReuse(t *testing.T) {
	r := NewRegistry(&sink{})

	const n = 8
	tokens := make([]Token, n)
	for i := range tokens {
		tok, err := r.Register(noopFunc)
		if err != nil {
			t.Fatal(err)
		}
		tokens[i] = tok
	}

	released := map[Token]bool{tokens[1]: true, tokens[3]: true, tokens[5]: true}
	for tok := range released {
		if err := r.Release(tok); err != nil {
			t.Fatal(err)
		}
	}

	// New registrations must reuse freed indices before growing the pool.
	for i := 0; i < 3; i++ {
		tok, err := r.Register(noopFunc)
		if err != nil {
			t.Fatal(err)
		}
		if !released[tok] {
			t.Fatalf("token %#x did not reuse a freed index", uintptr(tok))
		}
		delete(released, tok)
	}

	// The pool grows only after the free list is exhausted.
	tok, err := r.Register(noopFunc)
	if err != nil {
		t.Fatal(err)
	}
	if int(tok) != n+1 {
		t.Fatalf("token %#x, want fresh index %d", uintptr(tok), n+1)
	}

	// No token collision among live slots.
	seen := map[Token]bool{}
	for _, tk := range tokens {
		if _, ok := r.Lookup(tk); ok {
			if seen[tk] {
				t.Fatalf("duplicate live token %#x", uintptr(tk))
			}
			seen[tk] = true
		}
	}
}

func TestRoundTripAdd(t *testing.T) {
	s := &sink{}
	r := NewRegistry(s)

	add, err := Wrap(func(a, b int64) int64 { return a + b }, nil)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	tok, err := r.Register(add)
	if err != nil {
		t.Fatal(err)
	}

	argv := make([]abi.TaggedValue, 2)
	argv[0].SetInt64(5)
	argv[1].SetInt64(7)
	var result abi.TaggedValue

	if st := r.Invoke(uintptr(tok), &argv[0], 2, &result); st != abi.StatusOK {
		t.Fatalf("Invoke status = %d (%v)", st, s.last())
	}
	if result.Type != abi.TypeInt || result.Int64() != 12 {
		t.Fatalf("result = %+v, want int 12", result)
	}

	r.Delete(uintptr(tok))
	if _, ok := r.Lookup(tok); ok {
		t.Fatal("Lookup succeeded after deleter fired")
	}

	// Invoking a released slot is reported, not crashed.
	if st := r.Invoke(uintptr(tok), &argv[0], 2, &result); st != abi.StatusError {
		t.Fatal("Invoke of released slot must fail")
	}
	if !stderrors.Is(s.last(), &errors.Error{Phase: errors.PhaseCallback, Kind: errors.KindNotFound}) {
		t.Fatalf("raised = %v, want not_found", s.last())
	}
}

func TestInvokeRecoverPanic(t *testing.T) {
	s := &sink{}
	r := NewRegistry(s)

	tok, _ := r.Register(func([]value.View) (*value.Any, error) {
		panic("kernel exploded")
	})

	var result abi.TaggedValue
	if st := r.Invoke(uintptr(tok), nil, 0, &result); st != abi.StatusError {
		t.Fatal("panic must surface as error status")
	}
	err := s.last()
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCallback, Kind: errors.KindCallbackPanic}) {
		t.Fatalf("raised = %v, want callback_panic", err)
	}
}

func TestInvokeErrorTranslation(t *testing.T) {
	s := &sink{}
	r := NewRegistry(s)

	boom := errors.InvalidInput(errors.PhaseCallback, "negative length")
	tok, _ := r.Register(func([]value.View) (*value.Any, error) {
		return nil, boom
	})

	var result abi.TaggedValue
	if st := r.Invoke(uintptr(tok), nil, 0, &result); st != abi.StatusError {
		t.Fatal("error must surface as error status")
	}
	if s.last() != boom {
		t.Fatalf("raised = %v, want the callable's error", s.last())
	}
	if result.Type != abi.TypeNone {
		t.Fatal("result must stay none on error")
	}
}

func TestInvokeMalformedInput(t *testing.T) {
	s := &sink{}
	r := NewRegistry(s)
	tok, _ := r.Register(noopFunc)

	var result abi.TaggedValue
	if st := r.Invoke(uintptr(tok), nil, -1, &result); st != abi.StatusError {
		t.Fatal("negative argc must fail")
	}
	if st := r.Invoke(uintptr(tok), nil, 2, &result); st != abi.StatusError {
		t.Fatal("nil argv with argc>0 must fail")
	}
	if st := r.Invoke(uintptr(tok), nil, 0, nil); st != abi.StatusError {
		t.Fatal("nil out_result must fail")
	}
}

func TestRegistryClosed(t *testing.T) {
	r := NewRegistry(&sink{})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(noopFunc); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseCallback, Kind: errors.KindClosed}) {
		t.Fatalf("Register after Close = %v, want closed", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal("Close must be idempotent")
	}
}

func TestConcurrentRegisterRelease(t *testing.T) {
	r := NewRegistry(&sink{})

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tok, err := r.Register(noopFunc)
				if err != nil {
					t.Error(err)
					return
				}
				if _, ok := r.Lookup(tok); !ok {
					t.Error("live slot not found")
					return
				}
				if err := r.Release(tok); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if r.Live() != 0 {
		t.Fatalf("Live = %d after stress, want 0", r.Live())
	}
}
