package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-start-bot/internal/infra/metrics"
)

// ErrPollingConflict means another process is consuming updates for the
// same token (Telegram answered getUpdates with 409).
var ErrPollingConflict = errors.New("telegram: another getUpdates consumer is running")

const (
	minPollBackoff = time.Second
	maxPollBackoff = 30 * time.Second
)

// PrepareWebhook removes any webhook and drops updates queued while the bot
// was offline. Failure is logged and not fatal.
func (r *RealTelegramBotAdapter) PrepareWebhook(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		r.log.Warn().Err(err).Msg("failed to delete webhook; continuing with polling")
		return
	}
	r.log.Info().Msg("webhook deleted, pending updates dropped")
}

// StartPolling long-polls getUpdates and fans updates out to cfg.Workers
// goroutines. It returns nil once ctx is canceled and ErrPollingConflict
// when another consumer holds the token. Other getUpdates errors are
// retried with backoff.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancelPolling = cancel
	r.mu.Unlock()
	defer cancel()

	workers := r.cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	updateChan := make(chan tgbotapi.Update, workers*16)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Warn().Int("worker", id).Int("update_id", up.UpdateID).Err(err).Msg("failed to handle update")
				}
			}
		}(i + 1)
	}

	r.log.Info().Int("workers", workers).Msg("polling started")
	err := r.poll(ctx, updateChan)
	close(updateChan)
	wg.Wait()
	r.log.Info().Msg("polling stopped")
	return err
}

func (r *RealTelegramBotAdapter) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

func (r *RealTelegramBotAdapter) poll(ctx context.Context, out chan<- tgbotapi.Update) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = r.cfg.PollTimeout
	backoff := minPollBackoff

	for {
		if ctx.Err() != nil {
			return nil
		}

		// getUpdates has no context; abandon the in-flight call on shutdown.
		res := make(chan pollResult, 1)
		go func(cfg tgbotapi.UpdateConfig) {
			ups, err := r.bot.GetUpdates(cfg)
			res <- pollResult{updates: ups, err: err}
		}(u)

		var pr pollResult
		select {
		case <-ctx.Done():
			return nil
		case pr = <-res:
		}

		if pr.err != nil {
			if isConflict(pr.err) {
				return ErrPollingConflict
			}
			metrics.IncPollError()
			r.log.Warn().Err(pr.err).Dur("retry_in", backoff).Msg("getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxPollBackoff)
			continue
		}
		backoff = minPollBackoff

		for _, up := range pr.updates {
			if up.UpdateID >= u.Offset {
				u.Offset = up.UpdateID + 1
			}
			select {
			case out <- up:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func isConflict(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code == http.StatusConflict {
		return true
	}
	return strings.Contains(err.Error(), "Conflict")
}
