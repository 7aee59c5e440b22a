package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-start-bot/internal/domain"
	"telegram-start-bot/internal/domain/model"
	"telegram-start-bot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

// Timestamps come from the store clock so every writer agrees on them.
const upsertUserSQL = `
INSERT INTO users (telegram_id, username, first_name, last_name, language_code, last_active_at)
VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
ON CONFLICT (telegram_id) DO UPDATE SET
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  language_code = EXCLUDED.language_code,
  last_active_at = CURRENT_TIMESTAMP,
  updated_at = CURRENT_TIMESTAMP;
`

func (r *PostgresUserRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.Profile) error {
	if p == nil || p.TelegramID <= 0 {
		return domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = exec.Exec(ctx, upsertUserSQL,
		p.TelegramID,
		nullable(p.Username),
		nullable(p.FirstName),
		nullable(p.LastName),
		nullable(p.LanguageCode),
	)
	return classify(err)
}

func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	const q = `
SELECT id, telegram_id, username, first_name, last_name, language_code,
       created_at, updated_at, last_active_at
  FROM users WHERE telegram_id=$1;
`
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var (
		u                                   model.User
		username, first, last, languageCode *string
	)
	err = exec.QueryRow(ctx, q, tgID).Scan(
		&u.ID, &u.TelegramID, &username, &first, &last, &languageCode,
		&u.CreatedAt, &u.UpdatedAt, &u.LastActiveAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	u.Username = deref(username)
	u.FirstName = deref(first)
	u.LastName = deref(last)
	u.LanguageCode = deref(languageCode)
	return &u, nil
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := exec.QueryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) CountInactiveUsers(ctx context.Context, tx repository.Tx, since time.Time) (int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	row := exec.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE last_active_at IS NULL OR last_active_at < $1;`, since)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count inactive: %w", err)
	}
	return n, nil
}

// classify maps integrity violations (SQLSTATE class 23) to domain.ErrConstraint
// while keeping the driver error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		return fmt.Errorf("%w: %w", domain.ErrConstraint, pgErr)
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
