package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrLeaseHeld = errors.New("polling lease is held by another instance")
	ErrLeaseLost = errors.New("polling lease lost")
)

// PollingLease guarantees that at most one process long-polls a given bot.
// Telegram itself rejects a second getUpdates consumer with 409 Conflict; the
// lease catches that before the first request and across restarts.
type PollingLease struct {
	cli   RedisClient
	key   string
	token string
	ttl   time.Duration
	// wait bounds how long Acquire retries a held lease. A lease left by a
	// crashed process expires within one ttl.
	wait time.Duration
	log  *zerolog.Logger
}

func NewPollingLease(cli RedisClient, botID int64, ttl time.Duration, logger *zerolog.Logger) *PollingLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PollingLease{
		cli:   cli,
		key:   PollingLeaseKey(botID),
		token: uuid.NewString(),
		ttl:   ttl,
		wait:  ttl,
		log:   logger,
	}
}

func PollingLeaseKey(botID int64) string {
	return fmt.Sprintf("bot:%d:polling_lease", botID)
}

// Acquire takes the lease. While another token holds it, Acquire retries
// until the lease wait runs out and then returns ErrLeaseHeld.
func (l *PollingLease) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(l.wait)
	every := max(l.ttl/10, 10*time.Millisecond)
	logged := false
	for {
		ok, err := l.cli.SetNX(ctx, l.key, l.token, l.ttl)
		if err != nil {
			return fmt.Errorf("acquire polling lease: %w", err)
		}
		if ok {
			return nil
		}
		left := time.Until(deadline)
		if left <= 0 {
			return ErrLeaseHeld
		}
		if !logged {
			l.log.Info().Dur("wait", l.wait).Msg("polling lease held; waiting for it to expire")
			logged = true
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(every, left)):
		}
	}
}

// Keep refreshes the lease every ttl/3 until ctx is done. It returns
// ErrLeaseLost as soon as the key no longer holds our token.
func (l *PollingLease) Keep(ctx context.Context) error {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ok, err := l.cli.CompareAndExpire(ctx, l.key, l.token, l.ttl)
			if err != nil {
				// a missed refresh is fine while the ttl has not run out
				l.log.Warn().Err(err).Msg("polling lease refresh failed")
				continue
			}
			if !ok {
				return ErrLeaseLost
			}
		}
	}
}

// Release drops the lease if we still hold it.
func (l *PollingLease) Release(ctx context.Context) error {
	_, err := l.cli.CompareAndDelete(ctx, l.key, l.token)
	return err
}
