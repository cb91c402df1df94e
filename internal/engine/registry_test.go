package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuetprep/examd/internal/model"
)

func TestPutIfAbsentSingleEnginePerCandidateTest(t *testing.T) {
	reg := NewRegistry()
	def := makeDef(5, 4, -1, 600)

	// Simulate concurrent lobby loads: each start builds its own
	// speculative engine before registration, as the service does.
	const starts = 8
	owners := make([]*Session, starts)
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < starts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := NewSession(def, 7, 10*time.Minute)
			if err != nil {
				t.Error(err)
				return
			}
			owner, created := reg.PutIfAbsent(s)
			mu.Lock()
			owners[i] = owner
			if created {
				createdCount++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if got := reg.Len(); got != 1 {
		t.Fatalf("live engines for one (candidate,test) = %d, want 1", got)
	}
	if createdCount != 1 {
		t.Fatalf("created = %d times, want 1", createdCount)
	}
	for i, o := range owners {
		if o != owners[0] {
			t.Fatalf("start %d settled on a different engine", i)
		}
	}
	if reg.Get(owners[0].ID) != owners[0] {
		t.Fatal("winning engine not retrievable by ID")
	}
}

func TestPutIfAbsentEvictsTerminalForRetake(t *testing.T) {
	reg := NewRegistry()
	def := makeDef(5, 4, -1, 600)

	first, err := NewSession(def, 7, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, created := reg.PutIfAbsent(first); !created {
		t.Fatal("empty registry must accept the first session")
	}
	if err := first.BeginActive(context.Background(), NewAcknowledgedDisplay(true)); err != nil {
		t.Fatal(err)
	}
	if _, err := first.Submit(model.SubmitReasonUser); err != nil {
		t.Fatal(err)
	}

	retake, err := NewSession(def, 7, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	owner, created := reg.PutIfAbsent(retake)
	if !created || owner != retake {
		t.Fatal("terminal session must be evicted for the retake")
	}
	if got := reg.Len(); got != 1 {
		t.Fatalf("registry size after retake = %d, want 1", got)
	}
	if reg.Get(first.ID) != nil {
		t.Fatal("finished attempt should be gone from the registry")
	}
}

func TestPutIfAbsentKeepsOtherCandidatesApart(t *testing.T) {
	reg := NewRegistry()
	def := makeDef(5, 4, -1, 600)

	a, _ := NewSession(def, 1, 10*time.Minute)
	b, _ := NewSession(def, 2, 10*time.Minute)
	if _, created := reg.PutIfAbsent(a); !created {
		t.Fatal("first candidate rejected")
	}
	if _, created := reg.PutIfAbsent(b); !created {
		t.Fatal("second candidate must get their own engine")
	}
	if got := reg.Len(); got != 2 {
		t.Fatalf("registry size = %d, want 2", got)
	}
}
