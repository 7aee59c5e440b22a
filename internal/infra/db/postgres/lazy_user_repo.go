package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-start-bot/internal/domain"
	"telegram-start-bot/internal/domain/model"
	"telegram-start-bot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*LazyUserRepo)(nil)

// LazyUserRepo binds to the store on first use and again after every failed
// attempt, so a store that is down at startup is picked up once it is back.
// After a failure it fails fast for retryEvery before dialing again.
type LazyUserRepo struct {
	conn       *Connector
	log        *zerolog.Logger
	retryEvery time.Duration
	now        func() time.Time
	prepare    func(ctx context.Context, pool *pgxpool.Pool) (repository.UserRepository, error)

	mu       sync.Mutex
	repo     repository.UserRepository
	lastFail time.Time
}

func NewLazyUserRepo(conn *Connector, retryEvery time.Duration, logger *zerolog.Logger) *LazyUserRepo {
	return &LazyUserRepo{
		conn:       conn,
		log:        logger,
		retryEvery: retryEvery,
		now:        time.Now,
		prepare:    preparePostgres,
	}
}

func preparePostgres(ctx context.Context, pool *pgxpool.Pool) (repository.UserRepository, error) {
	if err := EnsureSchema(ctx, NewTxManager(pool)); err != nil {
		return nil, err
	}
	return NewPostgresUserRepo(pool), nil
}

// Ready returns the bound repository, acquiring the pool and ensuring the
// schema when not bound yet. Failures wrap domain.ErrStoreUnavailable.
func (l *LazyUserRepo) Ready(ctx context.Context) (repository.UserRepository, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.repo != nil {
		return l.repo, nil
	}
	if !l.lastFail.IsZero() && l.now().Sub(l.lastFail) < l.retryEvery {
		return nil, domain.ErrStoreUnavailable
	}

	pool, err := l.conn.Acquire(ctx)
	var repo repository.UserRepository
	if err == nil {
		repo, err = l.prepare(ctx, pool)
	}
	if err != nil {
		l.lastFail = l.now()
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if !l.lastFail.IsZero() {
		l.log.Info().Msg("database reachable again; persistence enabled")
	}
	l.repo = repo
	return repo, nil
}

func (l *LazyUserRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	repo, err := l.Ready(ctx)
	if err != nil {
		return err
	}
	return repo.Upsert(ctx, tx, p)
}

func (l *LazyUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	repo, err := l.Ready(ctx)
	if err != nil {
		return nil, err
	}
	return repo.FindByTelegramID(ctx, tx, tgID)
}

func (l *LazyUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	repo, err := l.Ready(ctx)
	if err != nil {
		return 0, err
	}
	return repo.CountUsers(ctx, tx)
}

func (l *LazyUserRepo) CountInactiveUsers(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	repo, err := l.Ready(ctx)
	if err != nil {
		return 0, err
	}
	return repo.CountInactiveUsers(ctx, tx, since)
}
