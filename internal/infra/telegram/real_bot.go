package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-start-bot/internal/application"
	"telegram-start-bot/internal/config"
	"telegram-start-bot/internal/domain/model"
	"telegram-start-bot/internal/domain/ports/adapter"
	"telegram-start-bot/internal/infra/logging"
	"telegram-start-bot/internal/infra/metrics"
	red "telegram-start-bot/internal/infra/redis"
)

// Compile-time check
var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botAPI is the slice of *tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

type limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RealTelegramBotAdapter long-polls Telegram and delegates to BotFacade.
type RealTelegramBotAdapter struct {
	bot     botAPI
	botID   int64
	cfg     *config.BotConfig
	facade  *application.BotFacade
	limiter limiter
	log     *zerolog.Logger
	dev     bool // log usernames unredacted

	mu            sync.Mutex
	cancelPolling context.CancelFunc
}

// NewRealTelegramBotAdapter authenticates the token against Telegram.
// rateLimiter may be nil.
func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, dev bool, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	a := newAdapter(bot, bot.Self.ID, cfg, facade, logger)
	a.dev = dev
	if rateLimiter != nil {
		a.limiter = rateLimiter
	}
	a.log.Info().Str("username", bot.Self.UserName).Msg("telegram bot authorized")
	return a, nil
}

func newAdapter(bot botAPI, botID int64, cfg *config.BotConfig, facade *application.BotFacade, logger *zerolog.Logger) *RealTelegramBotAdapter {
	l := logger.With().Str("component", "telegram").Logger()
	return &RealTelegramBotAdapter{
		bot:    bot,
		botID:  botID,
		cfg:    cfg,
		facade: facade,
		log:    &l,
	}
}

func (r *RealTelegramBotAdapter) BotID() int64 { return r.botID }

func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendButtons sends a message with an inline keyboard of URL buttons.
// Buttons without a URL are skipped.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL == "" {
				continue
			}
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
		}
		if len(kr) > 0 {
			kbRows = append(kbRows, kr)
		}
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(kbRows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	}
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	from := msg.From

	ctx = logging.WithTraceID(ctx, uuid.NewString())
	ctx = logging.WithTgID(ctx, from.ID)

	profile, err := model.NewProfile(from.ID, from.UserName, from.FirstName, from.LastName, from.LanguageCode)
	if err != nil {
		logging.With(ctx, r.log).Debug().Err(err).Msg("ignoring message with unusable sender")
		return nil
	}

	// Every message refreshes the sender's profile, commands included.
	r.facade.TrackActivity(ctx, profile)

	if !msg.IsCommand() {
		return nil
	}
	switch msg.Command() {
	case "start":
		return r.handleStartCommand(ctx, msg, profile)
	default:
		return nil
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, msg *tgbotapi.Message, profile *model.Profile) error {
	metrics.IncTelegramCommand("/start")
	logging.With(ctx, r.log).Info().
		Str("username", logging.Redact(profile.Username, r.dev)).
		Msg("/start")

	if r.limiter != nil && r.cfg.StartRateLimit > 0 {
		allowed, err := r.limiter.Allow(ctx, red.UserCommandKey(profile.TelegramID, "/start"), r.cfg.StartRateLimit, time.Minute)
		switch {
		case err != nil:
			logging.With(ctx, r.log).Warn().Err(err).Msg("rate limiter unavailable")
		case !allowed:
			metrics.IncRateLimitTriggered()
			return r.SendMessage(ctx, msg.Chat.ID, "Rate limit exceeded. Please try again later.")
		}
	}

	text, rows := r.facade.HandleStart(profile)
	return r.SendButtons(ctx, msg.Chat.ID, text, rows)
}
