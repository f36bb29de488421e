package intents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/paygate-backend/pkg/config"
	"github.com/angelmondragon/paygate-backend/pkg/db"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	"github.com/angelmondragon/paygate-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		Driver:       "sqlite",
		DSN:          "file::memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, nil)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.DB().AutoMigrate(&models.PaymentIntent{}, &models.LedgerEvent{}); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewRepo(client)
}

func newIntent(key string) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:               uuid.New(),
		IdempotencyKey:   key,
		CallerID:         "caller-1",
		AmountMinorUnits: 2500,
		Currency:         enums.CurrencyUSD,
		TokenFingerprint: "fp",
		State:            enums.IntentStateCreated,
		ProcessorName:    "sandbox",
	}
}

func TestRepoCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	intent := newIntent("k1")
	if err := repo.Create(ctx, intent); err != nil {
		t.Fatalf("create: %v", err)
	}

	byID, err := repo.GetByID(ctx, intent.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.IdempotencyKey != "k1" || byID.State != enums.IntentStateCreated {
		t.Fatalf("unexpected intent %+v", byID)
	}

	byKey, err := repo.GetByIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey.ID != intent.ID {
		t.Fatalf("unexpected intent %+v", byKey)
	}
}

func TestRepoDuplicateKeyIsIdempotencyError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newIntent("k1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, newIntent("k1"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeIdempotency {
		t.Fatalf("expected idempotency error, got %v", err)
	}
}

func TestRepoGetMissingIsNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepoUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	intent := newIntent("k1")
	if err := repo.Create(ctx, intent); err != nil {
		t.Fatalf("create: %v", err)
	}

	intent.State = enums.IntentStateValidated
	if err := repo.Update(ctx, intent); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, err := repo.GetByID(ctx, intent.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != enums.IntentStateValidated {
		t.Fatalf("state not persisted: %+v", stored)
	}
}

func TestRepoFindStaleNonTerminal(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	stale := newIntent("stale")
	if err := repo.Create(ctx, stale); err != nil {
		t.Fatalf("create: %v", err)
	}
	fresh := newIntent("fresh")
	if err := repo.Create(ctx, fresh); err != nil {
		t.Fatalf("create: %v", err)
	}
	done := newIntent("done")
	done.State = enums.IntentStateConfirmed
	if err := repo.Create(ctx, done); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Push the stale intent's last activity into the past.
	if err := repo.conn.Model(&models.PaymentIntent{}).
		Where("id = ?", stale.ID).
		Update("updated_at", time.Now().Add(-100*time.Hour)).Error; err != nil {
		t.Fatalf("backdating: %v", err)
	}

	found, err := repo.FindStaleNonTerminal(ctx, time.Now().Add(-72*time.Hour), 50)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found) != 1 || found[0].ID != stale.ID {
		t.Fatalf("expected only the stale intent, got %+v", found)
	}
}
