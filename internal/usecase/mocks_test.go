//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"telegram-start-bot/internal/domain"
	"telegram-start-bot/internal/domain/model"
	"telegram-start-bot/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// MockUserRepo behaves like the users table by default: Upsert keys on
// TelegramID and stamps times from a controllable clock. Set a Func field to
// override a method.
type MockUserRepo struct {
	mu    sync.Mutex
	rows  map[int64]*model.User
	seq   int64
	Clock func() time.Time

	UpsertFunc             func(ctx context.Context, tx repository.Tx, p *model.Profile) error
	FindByTelegramIDFunc   func(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error)
	CountUsersFunc         func(ctx context.Context, tx repository.Tx) (int, error)
	CountInactiveUsersFunc func(ctx context.Context, tx repository.Tx, since time.Time) (int, error)
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{rows: map[int64]*model.User{}, Clock: time.Now}
}

func (m *MockUserRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Clock()
	u, ok := m.rows[p.TelegramID]
	if !ok {
		m.seq++
		u = &model.User{ID: m.seq, TelegramID: p.TelegramID, CreatedAt: now}
		m.rows[p.TelegramID] = u
	}
	u.Username, u.FirstName, u.LastName, u.LanguageCode = p.Username, p.FirstName, p.LastName, p.LanguageCode
	u.UpdatedAt, u.LastActiveAt = now, now
	return nil
}

func (m *MockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if m.FindByTelegramIDFunc != nil {
		return m.FindByTelegramIDFunc(ctx, tx, tgID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	if m.CountUsersFunc != nil {
		return m.CountUsersFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *MockUserRepo) CountInactiveUsers(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	if m.CountInactiveUsersFunc != nil {
		return m.CountInactiveUsersFunc(ctx, tx, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range m.rows {
		if u.LastActiveAt.Before(since) {
			n++
		}
	}
	return n, nil
}
