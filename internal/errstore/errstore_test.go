package errstore

import (
	"errors"
	"sync"
	"testing"
)

func TestRaiseMove(t *testing.T) {
	s := New()
	if err := s.Move(); err != nil {
		t.Fatalf("fresh store carries %v", err)
	}

	boom := errors.New("boom")
	s.Raise(boom)
	if got := s.Peek(); got != boom {
		t.Fatalf("Peek = %v", got)
	}
	if got := s.Move(); got != boom {
		t.Fatalf("Move = %v", got)
	}
	if got := s.Move(); got != nil {
		t.Fatalf("second Move = %v, want nil", got)
	}
}

func TestRaiseNilClears(t *testing.T) {
	s := New()
	s.Raise(errors.New("x"))
	s.Raise(nil)
	if got := s.Move(); got != nil {
		t.Fatalf("Move after clear = %v", got)
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestPerGoroutineIsolation(t *testing.T) {
	s := New()

	const workers = 8
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			mine := errors.New("worker error")
			for i := 0; i < 100; i++ {
				s.Raise(mine)
				if got := s.Move(); got != mine {
					t.Errorf("worker %d: got someone else's error: %v", w, got)
					return
				}
			}
		}()
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Fatalf("Len = %d after drain, want 0", s.Len())
	}
}
