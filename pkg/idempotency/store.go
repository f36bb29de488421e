package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/paygate-backend/pkg/enums"
	"github.com/angelmondragon/paygate-backend/pkg/redis"
)

const reserveAttempts = 2

var (
	// ErrPending signals that another request holds the reservation and has
	// not recorded an outcome yet.
	ErrPending = errors.New("idempotency key reserved, outcome pending")
	// ErrNotFound signals that no record exists for the key.
	ErrNotFound = errors.New("idempotency key not found")
	// ErrNotReserved signals a release for a reservation this caller does not own.
	ErrNotReserved = errors.New("reservation not held")
)

// Outcome is the recorded result of a completed intake attempt. It is what
// replayed requests receive instead of a second processor call.
type Outcome struct {
	IntentID           uuid.UUID         `json:"intent_id"`
	State              enums.IntentState `json:"state"`
	ProcessorReference string            `json:"processor_reference,omitempty"`
	FailureReason      string            `json:"failure_reason,omitempty"`
	RecordedAt         time.Time         `json:"recorded_at"`
}

// Reservation proves the caller won the insert-if-absent race for a key and
// is the one allowed to contact the processor.
type Reservation struct {
	key   string
	owner string
}

type record struct {
	Status  string   `json:"status"`
	Owner   string   `json:"owner,omitempty"`
	Outcome *Outcome `json:"outcome,omitempty"`
}

const (
	statusPending  = "pending"
	statusComplete = "complete"
)

// Store deduplicates intake attempts per idempotency key.
type Store interface {
	// Reserve atomically inserts a placeholder if absent. Exactly one of the
	// return values is populated: a Reservation when this caller won the
	// race, a prior Outcome when the key already completed, or ErrPending
	// when another reservation is still in flight.
	Reserve(ctx context.Context, key string) (*Reservation, *Outcome, error)
	// Complete overwrites the placeholder with the recorded outcome and
	// re-arms the full retention window.
	Complete(ctx context.Context, key string, outcome Outcome) error
	// Release drops a pending reservation, e.g. when the caller aborted
	// before submission. Completed outcomes are never released.
	Release(ctx context.Context, reservation *Reservation) error
	// Lookup returns the recorded outcome for a key.
	Lookup(ctx context.Context, key string) (*Outcome, error)
}

// RedisStore implements Store on a namespaced Redis keyspace. Reservation is
// SETNX with the retention TTL, which is the single-writer-wins primitive the
// ordering guarantee rests on.
type RedisStore struct {
	kv        redis.KV
	scope     string
	retention time.Duration
}

// NewRedisStore builds the store. Retention bounds how long outcomes are
// replayable and must cover the deployment's dispute window.
func NewRedisStore(kv redis.KV, scope string, retention time.Duration) (*RedisStore, error) {
	if kv == nil {
		return nil, errors.New("redis kv is required")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	if retention <= 0 {
		return nil, errors.New("retention must be positive")
	}
	return &RedisStore{kv: kv, scope: scope, retention: retention}, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (*Reservation, *Outcome, error) {
	storageKey := s.kv.IdempotencyKey(s.scope, key)
	owner := uuid.NewString()
	payload, err := json.Marshal(record{Status: statusPending, Owner: owner})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal reservation: %w", err)
	}

	// The stored record can expire between a failed SETNX and the follow-up
	// GET; one retry covers that window.
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		set, err := s.kv.SetNX(ctx, storageKey, string(payload), s.retention)
		if err != nil {
			return nil, nil, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if set {
			return &Reservation{key: key, owner: owner}, nil, nil
		}

		stored, err := s.kv.Get(ctx, storageKey)
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				continue
			}
			return nil, nil, fmt.Errorf("read idempotency record: %w", err)
		}
		rec, err := decodeRecord(stored)
		if err != nil {
			return nil, nil, err
		}
		if rec.Status == statusPending {
			return nil, nil, ErrPending
		}
		return nil, rec.Outcome, nil
	}
	return nil, nil, ErrPending
}

func (s *RedisStore) Complete(ctx context.Context, key string, outcome Outcome) error {
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(record{Status: statusComplete, Outcome: &outcome})
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	storageKey := s.kv.IdempotencyKey(s.scope, key)
	if err := s.kv.Set(ctx, storageKey, string(payload), s.retention); err != nil {
		return fmt.Errorf("persist outcome: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, reservation *Reservation) error {
	if reservation == nil {
		return nil
	}
	storageKey := s.kv.IdempotencyKey(s.scope, reservation.key)
	stored, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("read reservation: %w", err)
	}
	rec, err := decodeRecord(stored)
	if err != nil {
		return err
	}
	if rec.Status != statusPending || rec.Owner != reservation.owner {
		return ErrNotReserved
	}
	if err := s.kv.Del(ctx, storageKey); err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (*Outcome, error) {
	storageKey := s.kv.IdempotencyKey(s.scope, key)
	stored, err := s.kv.Get(ctx, storageKey)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read idempotency record: %w", err)
	}
	rec, err := decodeRecord(stored)
	if err != nil {
		return nil, err
	}
	if rec.Status == statusPending {
		return nil, ErrPending
	}
	return rec.Outcome, nil
}

func decodeRecord(payload string) (*record, error) {
	var rec record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}
