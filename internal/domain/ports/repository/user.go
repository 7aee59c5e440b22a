package repository

import (
	"context"
	"time"

	"telegram-start-bot/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	// Upsert inserts the profile or overwrites the mutable fields of an
	// existing row with the same telegram_id, refreshing its timestamps.
	Upsert(ctx context.Context, tx Tx, p *model.Profile) error
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
	CountUsers(ctx context.Context, tx Tx) (int, error)
	CountInactiveUsers(ctx context.Context, tx Tx, since time.Time) (int, error)
}
