package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-start-bot/internal/domain"
	"telegram-start-bot/internal/domain/model"
	"telegram-start-bot/internal/domain/ports/adapter"
	"telegram-start-bot/internal/infra/logging"
	"telegram-start-bot/internal/infra/metrics"
	"telegram-start-bot/internal/infra/worker"
	"telegram-start-bot/internal/usecase"

	"github.com/rs/zerolog"
)

// Submitter accepts detached background work. *worker.Pool satisfies it.
type Submitter interface {
	Submit(task worker.Task) error
}

// LinkButton is the single URL button attached to the /start reply.
type LinkButton struct {
	Text string
	URL  string
}

// BotFacade composes usecases into the replies and side effects the
// Telegram adapter needs. Keep it transport-agnostic: it returns text and
// buttons and never talks to Telegram.
type BotFacade struct {
	UserUC usecase.UserUseCase // nil runs the bot without persistence

	writes       Submitter
	link         LinkButton
	writeTimeout time.Duration
	log          *zerolog.Logger
}

func NewBotFacade(userUC usecase.UserUseCase, writes Submitter, link LinkButton, writeTimeout time.Duration, logger *zerolog.Logger) *BotFacade {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &BotFacade{
		UserUC:       userUC,
		writes:       writes,
		link:         link,
		writeTimeout: writeTimeout,
		log:          logger,
	}
}

// HandleStart builds the greeting and the link keyboard for /start. It
// never touches the store, so the reply does not depend on persistence.
func (b *BotFacade) HandleStart(p *model.Profile) (string, [][]adapter.InlineButton) {
	text := fmt.Sprintf("Hello %s", p.DisplayName())
	rows := [][]adapter.InlineButton{
		{{Text: b.link.Text, URL: b.link.URL}},
	}
	return text, rows
}

// TrackActivity schedules an upsert of the sender profile on the write pool
// and returns immediately. The outcome never reaches the caller.
func (b *BotFacade) TrackActivity(ctx context.Context, p *model.Profile) {
	if b.UserUC == nil || b.writes == nil {
		metrics.IncUserUpsert(metrics.UpsertSkipped)
		return
	}
	if p == nil {
		return
	}
	// The task outlives the update handler; keep only the log fields.
	log := logging.With(ctx, b.log)
	profile := *p

	err := b.writes.Submit(func(taskCtx context.Context) error {
		wctx, cancel := context.WithTimeout(taskCtx, b.writeTimeout)
		defer cancel()

		// Errors stop here on purpose.
		_ = b.recordActivity(wctx, log, &profile)
		return nil
	})
	if err != nil {
		metrics.IncUserUpsert(metrics.UpsertDropped)
		log.Warn().Err(err).Msg("user upsert not scheduled")
	}
}

func (b *BotFacade) recordActivity(ctx context.Context, log *zerolog.Logger, p *model.Profile) error {
	err := b.UserUC.RecordActivity(ctx, p)
	if err == nil {
		metrics.IncUserUpsert(metrics.UpsertOK)
		return nil
	}

	var upErr *domain.UpsertError
	if !errors.As(err, &upErr) {
		upErr = &domain.UpsertError{TelegramID: p.TelegramID, Err: err}
	}
	if errors.Is(upErr, domain.ErrConstraint) {
		metrics.IncUserUpsert(metrics.UpsertConstraint)
	} else {
		metrics.IncUserUpsert(metrics.UpsertFailed)
	}
	log.Warn().Err(upErr).Msg("user upsert failed")
	return upErr
}
