//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-start-bot/internal/domain"
	"telegram-start-bot/internal/domain/model"
	"telegram-start-bot/internal/domain/ports/repository"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewPostgresUserRepo(testPool)
	ctx := context.Background()

	t.Run("first upsert creates one record with equal timestamps", func(t *testing.T) {
		cleanup(t)

		p, _ := model.NewProfile(42, "ann_k", "Ann", "", "en")
		if err := repo.Upsert(ctx, nil, p); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		u, err := repo.FindByTelegramID(ctx, nil, 42)
		if err != nil {
			t.Fatalf("FindByTelegramID failed: %v", err)
		}
		if u.FirstName != "Ann" || u.Username != "ann_k" || u.LanguageCode != "en" {
			t.Errorf("unexpected record: %+v", u)
		}
		if u.LastName != "" {
			t.Errorf("absent last name should round-trip as empty, got %q", u.LastName)
		}
		if !u.CreatedAt.Equal(u.UpdatedAt) || !u.UpdatedAt.Equal(u.LastActiveAt) {
			t.Errorf("expected created == updated == last_active, got %v %v %v", u.CreatedAt, u.UpdatedAt, u.LastActiveAt)
		}

		n, err := repo.CountUsers(ctx, nil)
		if err != nil || n != 1 {
			t.Fatalf("expected exactly one record, got %d (err %v)", n, err)
		}
	})

	t.Run("second upsert overwrites profile and advances timestamps", func(t *testing.T) {
		cleanup(t)

		first, _ := model.NewProfile(42, "ann_k", "Ann", "K", "en")
		if err := repo.Upsert(ctx, nil, first); err != nil {
			t.Fatalf("first Upsert failed: %v", err)
		}
		before, _ := repo.FindByTelegramID(ctx, nil, 42)

		time.Sleep(20 * time.Millisecond)

		second, _ := model.NewProfile(42, "", "Anna", "", "de")
		if err := repo.Upsert(ctx, nil, second); err != nil {
			t.Fatalf("second Upsert failed: %v", err)
		}
		after, _ := repo.FindByTelegramID(ctx, nil, 42)

		if after.ID != before.ID || after.TelegramID != 42 {
			t.Errorf("identity changed: before %+v after %+v", before, after)
		}
		if !after.CreatedAt.Equal(before.CreatedAt) {
			t.Errorf("created_at changed: %v -> %v", before.CreatedAt, after.CreatedAt)
		}
		if after.FirstName != "Anna" || after.LanguageCode != "de" {
			t.Errorf("mutable fields not overwritten: %+v", after)
		}
		if after.Username != "" || after.LastName != "" {
			t.Errorf("absent fields should overwrite with NULL: %+v", after)
		}
		if !after.UpdatedAt.After(before.UpdatedAt) || !after.LastActiveAt.After(before.LastActiveAt) {
			t.Errorf("timestamps did not advance: %v -> %v", before.UpdatedAt, after.UpdatedAt)
		}
	})

	t.Run("concurrent upserts for one identity keep a single record", func(t *testing.T) {
		cleanup(t)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, _ := model.NewProfile(7, "racer", "Racer", "", "")
				if err := repo.Upsert(ctx, nil, p); err != nil {
					t.Errorf("Upsert failed: %v", err)
				}
			}()
		}
		wg.Wait()

		n, _ := repo.CountUsers(ctx, nil)
		if n != 1 {
			t.Errorf("expected 1 record, got %d", n)
		}
	})

	t.Run("missing user maps to ErrNotFound", func(t *testing.T) {
		cleanup(t)
		if _, err := repo.FindByTelegramID(ctx, nil, 999); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("counts inactive users", func(t *testing.T) {
		cleanup(t)

		p, _ := model.NewProfile(1, "a", "A", "", "")
		if err := repo.Upsert(ctx, nil, p); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if _, err := testPool.Exec(ctx, `UPDATE users SET last_active_at = NOW() - INTERVAL '48 hours' WHERE telegram_id = 1`); err != nil {
			t.Fatalf("backdate failed: %v", err)
		}
		p2, _ := model.NewProfile(2, "b", "B", "", "")
		if err := repo.Upsert(ctx, nil, p2); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}

		var cutoff time.Time
		if err := testPool.QueryRow(ctx, `SELECT (CURRENT_TIMESTAMP - INTERVAL '24 hours')::timestamp`).Scan(&cutoff); err != nil {
			t.Fatalf("cutoff query failed: %v", err)
		}
		n, err := repo.CountInactiveUsers(ctx, nil, cutoff)
		if err != nil {
			t.Fatalf("CountInactiveUsers failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 inactive user, got %d", n)
		}
	})
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	ctx := context.Background()
	cleanup(t)

	repo := NewPostgresUserRepo(testPool)
	p, _ := model.NewProfile(42, "ann_k", "Ann", "", "en")
	if err := repo.Upsert(ctx, nil, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	tm := NewTxManager(testPool)
	for i := 0; i < 2; i++ {
		if err := EnsureSchema(ctx, tm); err != nil {
			t.Fatalf("EnsureSchema run %d failed: %v", i+1, err)
		}
	}

	u, err := repo.FindByTelegramID(ctx, nil, 42)
	if err != nil || u.FirstName != "Ann" {
		t.Fatalf("existing data lost after EnsureSchema: %+v (err %v)", u, err)
	}
}

func TestTxManager_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	cleanup(t)

	repo := NewPostgresUserRepo(testPool)
	tm := NewTxManager(testPool)
	boom := errors.New("boom")

	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, _ := model.NewProfile(5, "tx", "Tx", "", "")
		if err := repo.Upsert(ctx, tx, p); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := repo.FindByTelegramID(ctx, nil, 5); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected rolled back insert, got %v", err)
	}
}
