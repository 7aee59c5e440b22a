package usecase

import (
	"context"
	"time"

	"telegram-start-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (users int, err error)
	InactiveUsers(ctx context.Context, olderThan time.Time) (int, error)
}

type statsUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, error) {
	return s.users.CountUsers(ctx, repository.NoTX)
}

func (s *statsUC) InactiveUsers(ctx context.Context, olderThan time.Time) (int, error) {
	return s.users.CountInactiveUsers(ctx, repository.NoTX, olderThan)
}
