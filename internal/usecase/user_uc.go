package usecase

import (
	"context"

	"telegram-start-bot/internal/domain"
	"telegram-start-bot/internal/domain/model"
	"telegram-start-bot/internal/domain/ports/repository"
	"telegram-start-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user-related operations used by bot/admin flows.
type UserUseCase interface {
	// RecordActivity upserts the sender profile. Any failure comes back as
	// a *domain.UpsertError.
	RecordActivity(ctx context.Context, p *model.Profile) error
	GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error)
}

type userUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, logger *zerolog.Logger) *userUC {
	return &userUC{
		users: users,
		log:   logger,
	}
}

func (u *userUC) RecordActivity(ctx context.Context, p *model.Profile) error {
	defer logging.TraceDuration(u.log, "UserUC.RecordActivity")()

	if p == nil || p.TelegramID <= 0 {
		var id int64
		if p != nil {
			id = p.TelegramID
		}
		return &domain.UpsertError{TelegramID: id, Err: domain.ErrInvalidArgument}
	}
	// A single conflict-clause statement; no read-modify-write, so no
	// transaction is needed.
	if err := u.users.Upsert(ctx, repository.NoTX, p); err != nil {
		return &domain.UpsertError{TelegramID: p.TelegramID, Err: err}
	}
	return nil
}

func (u *userUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error) {
	defer logging.TraceDuration(u.log, "UserUC.GetByTelegramID")()
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return u.users.FindByTelegramID(ctx, repository.NoTX, tgID)
}
