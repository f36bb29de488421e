package intents

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/paygate-backend/pkg/db"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
)

// Repo persists payment intents.
type Repo struct {
	conn *gorm.DB
}

func NewRepo(client *db.Client) *Repo {
	return &Repo{conn: client.DB()}
}

// WithTx returns a repo bound to the supplied transaction.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{conn: tx}
}

func (r *Repo) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if err := r.conn.WithContext(ctx).Create(intent).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_payment_intents_idempotency_key") {
			return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "idempotency key already recorded")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating payment intent")
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.conn.WithContext(ctx).First(&intent, "id = ?", id).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment intent")
	}
	return &intent, nil
}

func (r *Repo) GetByIdempotencyKey(ctx context.Context, key string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.conn.WithContext(ctx).First(&intent, "idempotency_key = ?", key).Error
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading payment intent")
	}
	return &intent, nil
}

func (r *Repo) Update(ctx context.Context, intent *models.PaymentIntent) error {
	intent.UpdatedAt = time.Now().UTC()
	if err := r.conn.WithContext(ctx).Save(intent).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating payment intent")
	}
	return nil
}

// FindStaleNonTerminal lists intents still in flight past the cutoff. The
// retention sweeper expires these in batches.
func (r *Repo) FindStaleNonTerminal(ctx context.Context, cutoff time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	err := r.conn.WithContext(ctx).
		Where("state NOT IN ?", []string{"CONFIRMED", "FAILED", "EXPIRED"}).
		Where("updated_at < ?", cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&intents).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing stale intents")
	}
	return intents, nil
}
