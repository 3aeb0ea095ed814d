package pipeline

import (
	"sync"
	"testing"

	"logremap/pkg/models"
)

func TestSlotSwapIncrementsEpoch(t *testing.T) {
	s := NewSlot(identity())
	if s.Epoch() != 1 {
		t.Fatalf("initial epoch = %d, want 1", s.Epoch())
	}
	snap := s.Snapshot()
	if e := s.Swap(identity()); e != 2 {
		t.Fatalf("epoch after swap = %d, want 2", e)
	}
	// snapshot taken before the swap is unaffected
	if snap.Epoch != 1 {
		t.Fatalf("old snapshot epoch = %d, want 1", snap.Epoch)
	}
	if s.Snapshot().Epoch != 2 {
		t.Fatalf("new snapshot epoch = %d, want 2", s.Snapshot().Epoch)
	}
}

func TestSlotConcurrentReaders(t *testing.T) {
	s := NewSlot(identity())
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				act := s.Snapshot()
				if act == nil || act.Program == nil {
					t.Error("snapshot returned incomplete state")
					return
				}
				if act.Epoch < last {
					t.Errorf("epoch went backwards: %d then %d", last, act.Epoch)
					return
				}
				last = act.Epoch
				if _, err := act.Program.Evaluate(models.Record{Fields: map[string]any{}}); err != nil {
					t.Errorf("evaluate: %v", err)
					return
				}
			}
		}()
	}
	for i := 0; i < 500; i++ {
		s.Swap(identity())
	}
	close(stop)
	wg.Wait()
	if s.Epoch() != 501 {
		t.Fatalf("final epoch = %d, want 501", s.Epoch())
	}
}
