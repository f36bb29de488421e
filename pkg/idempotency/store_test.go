package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
)

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key], _ = value.(string)
	return nil
}

func (f *fakeKV) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	return true, nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeKV) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:idempotency:%s:%s", scope, id)
}

func newStore(t *testing.T) (*RedisStore, *fakeKV) {
	t.Helper()
	kv := newFakeKV()
	store, err := NewRedisStore(kv, "intake", 24*time.Hour)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, kv
}

func TestReserveFirstCallerWins(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	res, prior, err := store.Reserve(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || prior != nil {
		t.Fatalf("first caller should hold the reservation")
	}

	_, _, err = store.Reserve(ctx, "k1")
	if !errors.Is(err, ErrPending) {
		t.Fatalf("second caller should see pending, got %v", err)
	}
}

func TestCompleteThenReserveReturnsOutcome(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()
	intentID := uuid.New()

	if _, _, err := store.Reserve(ctx, "k1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	outcome := Outcome{
		IntentID:           intentID,
		State:              enums.IntentStateConfirmed,
		ProcessorReference: "ref_1",
	}
	if err := store.Complete(ctx, "k1", outcome); err != nil {
		t.Fatalf("complete: %v", err)
	}

	res, prior, err := store.Reserve(ctx, "k1")
	if err != nil {
		t.Fatalf("replay reserve: %v", err)
	}
	if res != nil {
		t.Fatalf("replay must not win a reservation")
	}
	if prior == nil || prior.IntentID != intentID || prior.ProcessorReference != "ref_1" {
		t.Fatalf("unexpected prior outcome %+v", prior)
	}
	if prior.State != enums.IntentStateConfirmed {
		t.Fatalf("unexpected state %s", prior.State)
	}
	if prior.RecordedAt.IsZero() {
		t.Fatalf("complete should stamp RecordedAt")
	}
}

func TestReleaseDropsOnlyOwnPendingReservation(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	res, _, err := store.Reserve(ctx, "k1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Release(ctx, res); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Key is free again after the release.
	res2, prior, err := store.Reserve(ctx, "k1")
	if err != nil || res2 == nil || prior != nil {
		t.Fatalf("key should be reservable after release: res=%v prior=%v err=%v", res2, prior, err)
	}

	// A stale reservation handle must not release the new owner's hold.
	if err := store.Release(ctx, res); !errors.Is(err, ErrNotReserved) {
		t.Fatalf("expected ErrNotReserved got %v", err)
	}
}

func TestReleaseNeverDropsCompletedOutcome(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	res, _, err := store.Reserve(ctx, "k1")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.Complete(ctx, "k1", Outcome{IntentID: uuid.New(), State: enums.IntentStateFailed, FailureReason: "TIMEOUT"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Release(ctx, res); !errors.Is(err, ErrNotReserved) {
		t.Fatalf("release after complete should refuse, got %v", err)
	}
	if _, err := store.Lookup(ctx, "k1"); err != nil {
		t.Fatalf("outcome should survive the release attempt: %v", err)
	}
}

func TestLookup(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if _, err := store.Lookup(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	if _, _, err := store.Reserve(ctx, "k1"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.Lookup(ctx, "k1"); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending got %v", err)
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	pendings := 0

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := store.Reserve(ctx, "hot-key")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case res != nil:
				winners++
			case errors.Is(err, ErrPending):
				pendings++
			default:
				t.Errorf("unexpected reserve result: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if pendings != callers-1 {
		t.Fatalf("expected %d pending callers, got %d", callers-1, pendings)
	}
}
