package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/paygate-backend/pkg/db"
	"github.com/angelmondragon/paygate-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/paygate-backend/pkg/errors"
)

// Repo persists audit events. The table is append-only; there is no update
// or delete path.
type Repo struct {
	conn *gorm.DB
}

func NewRepo(client *db.Client) *Repo {
	return &Repo{conn: client.DB()}
}

func (r *Repo) Append(ctx context.Context, event *models.LedgerEvent) error {
	if err := r.conn.WithContext(ctx).Create(event).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending ledger event")
	}
	return nil
}

func (r *Repo) ListByIntent(ctx context.Context, intentID uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := r.conn.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("created_at asc").
		Find(&events).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing ledger events")
	}
	return events, nil
}
