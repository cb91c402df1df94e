package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/cuetprep/examd/internal/event"
	"github.com/cuetprep/examd/internal/model"
)

// fakeReleaseStore is an in-memory ReleaseStore with the same
// compare-and-set semantics as the SQL UPDATE it stands in for.
type fakeReleaseStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*model.ResultRecord
	now     func() time.Time
}

func newFakeReleaseStore(now func() time.Time) *fakeReleaseStore {
	return &fakeReleaseStore{
		records: make(map[uuid.UUID]*model.ResultRecord),
		now:     now,
	}
}

func (f *fakeReleaseStore) put(rec *model.ResultRecord) {
	f.mu.Lock()
	f.records[rec.ID] = rec
	f.mu.Unlock()
}

func (f *fakeReleaseStore) GetReleaseState(ctx context.Context, id uuid.UUID) (*model.ReleaseState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &model.ReleaseState{
		ResultID:    rec.ID,
		CandidateID: rec.CandidateID,
		TestID:      rec.TestID,
		Status:      rec.Status,
		AvailableAt: rec.AvailableAt,
	}, nil
}

func (f *fakeReleaseStore) GetByID(ctx context.Context, id uuid.UUID) (*model.ResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeReleaseStore) MarkAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return false, nil
	}
	if rec.Status != model.ResultStatusPending || rec.AvailableAt.After(f.now()) {
		return false, nil
	}
	rec.Status = model.ResultStatusAvailable
	released := f.now()
	rec.ReleasedAt = &released
	return true, nil
}

// countingNotifier counts NotifyReleased invocations.
type countingNotifier struct {
	mu    sync.Mutex
	calls int
	last  event.ResultReleased
}

func (n *countingNotifier) NotifyReleased(ctx context.Context, ev event.ResultReleased) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.last = ev
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func pendingResult(candidateID int, availableAt time.Time) *model.ResultRecord {
	return &model.ResultRecord{
		ID:          uuid.New(),
		SessionID:   uuid.New(),
		CandidateID: candidateID,
		TestID:      uuid.New(),
		Score:       12,
		TotalMarks:  40,
		Status:      model.ResultStatusPending,
		SubmittedAt: availableAt.Add(-10 * time.Minute),
		AvailableAt: availableAt,
	}
}

func releaseServiceAt(store ReleaseStore, notifier event.Notifier, now time.Time) *ReleaseService {
	svc := NewReleaseService(store, notifier, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestTriggerBeforeEmbargoIsRejected(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	availableAt := now.Add(5 * time.Minute)

	store := newFakeReleaseStore(func() time.Time { return now })
	rec := pendingResult(7, availableAt)
	store.put(rec)

	notifier := &countingNotifier{}
	svc := releaseServiceAt(store, notifier, now)

	flipped, err := svc.Trigger(context.Background(), rec.ID)
	if !errors.Is(err, ErrResultEmbargoed) {
		t.Fatalf("Trigger before embargo: err = %v, want ErrResultEmbargoed", err)
	}
	if flipped {
		t.Fatal("Trigger before embargo reported a flip")
	}
	if notifier.count() != 0 {
		t.Fatalf("notifications before embargo = %d, want 0", notifier.count())
	}

	st, err := svc.Status(context.Background(), rec.ID, 7)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != model.ResultStatusPending {
		t.Fatalf("status = %s, want PENDING", st.Status)
	}
	if st.SecondsLeft <= 0 {
		t.Fatalf("seconds_left = %d, want > 0", st.SecondsLeft)
	}
}

func TestTriggerAtBoundaryReleases(t *testing.T) {
	availableAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	// Exactly at available_at the embargo has elapsed.
	store := newFakeReleaseStore(func() time.Time { return availableAt })
	rec := pendingResult(7, availableAt)
	store.put(rec)

	notifier := &countingNotifier{}
	svc := releaseServiceAt(store, notifier, availableAt)

	flipped, err := svc.Trigger(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Trigger at boundary: %v", err)
	}
	if !flipped {
		t.Fatal("Trigger at boundary did not flip")
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.count())
	}
	if notifier.last.ResultID != rec.ID {
		t.Fatalf("notified result = %s, want %s", notifier.last.ResultID, rec.ID)
	}
}

func TestConcurrentTriggersNotifyOnce(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeReleaseStore(func() time.Time { return now })
	rec := pendingResult(7, now.Add(-time.Second))
	store.put(rec)

	notifier := &countingNotifier{}
	svc := releaseServiceAt(store, notifier, now)

	const racers = 3
	var wg sync.WaitGroup
	winners := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			flipped, err := svc.Trigger(context.Background(), rec.ID)
			if err != nil {
				t.Errorf("Trigger: %v", err)
				return
			}
			winners <- flipped
		}()
	}
	wg.Wait()
	close(winners)

	wins := 0
	for w := range winners {
		if w {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications = %d, want exactly 1", notifier.count())
	}
}

func TestTriggerAfterReleaseIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeReleaseStore(func() time.Time { return now })
	rec := pendingResult(7, now.Add(-time.Minute))
	store.put(rec)

	notifier := &countingNotifier{}
	svc := releaseServiceAt(store, notifier, now)

	if _, err := svc.Trigger(context.Background(), rec.ID); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	flipped, err := svc.Trigger(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if flipped {
		t.Fatal("second Trigger reported a flip")
	}
	if notifier.count() != 1 {
		t.Fatalf("notifications after repeat trigger = %d, want 1", notifier.count())
	}
}

func TestGetReleasedHidesPendingScore(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	store := newFakeReleaseStore(func() time.Time { return now })
	rec := pendingResult(7, now.Add(time.Hour))
	store.put(rec)

	notifier := &countingNotifier{}
	svc := releaseServiceAt(store, notifier, now)

	if _, err := svc.GetReleased(context.Background(), rec.ID, 7); !errors.Is(err, ErrResultEmbargoed) {
		t.Fatalf("GetReleased pending: err = %v, want ErrResultEmbargoed", err)
	}
	if _, err := svc.GetReleased(context.Background(), rec.ID, 99); !errors.Is(err, ErrNotResultOwner) {
		t.Fatalf("GetReleased foreign: err = %v, want ErrNotResultOwner", err)
	}

	// Flip and read.
	rec.AvailableAt = now.Add(-time.Minute)
	store.put(rec)
	if _, err := svc.Trigger(context.Background(), rec.ID); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	got, err := svc.GetReleased(context.Background(), rec.ID, 7)
	if err != nil {
		t.Fatalf("GetReleased available: %v", err)
	}
	if got.Score != rec.Score {
		t.Fatalf("score = %d, want %d", got.Score, rec.Score)
	}
}
