// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"telegram-start-bot/internal/application"
	"telegram-start-bot/internal/config"
	"telegram-start-bot/internal/infra/api"
	pg "telegram-start-bot/internal/infra/db/postgres"
	"telegram-start-bot/internal/infra/logging"
	"telegram-start-bot/internal/infra/metrics"
	red "telegram-start-bot/internal/infra/redis"
	"telegram-start-bot/internal/infra/scheduler"
	tele "telegram-start-bot/internal/infra/telegram"
	"telegram-start-bot/internal/infra/worker"
	"telegram-start-bot/internal/usecase"
)

// Set via -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file (optional)")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, debug level)")
	mintToken := flag.String("mint-admin-token", "", "print an admin API token for the given subject and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	if *mintToken != "" {
		tok, err := api.NewAuthManager(cfg.Admin.JWTSecret, 0).Mint(*mintToken)
		if err != nil {
			logger.Error().Err(err).Msg("mint admin token")
			return 1
		}
		fmt.Println(tok)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres (degraded mode allowed) ----
	conn := pg.NewConnector(cfg.Database, logger)
	defer conn.Close()

	userRepo := pg.NewLazyUserRepo(conn, cfg.Database.RetryEvery, logger)
	if _, err := userRepo.Ready(ctx); err != nil {
		logger.Warn().Err(err).Dur("retry_every", cfg.Database.RetryEvery).Msg("database unavailable; writes will reconnect")
	}
	userUC := usecase.NewUserUseCase(userRepo, logger)
	statsUC := usecase.NewStatsUseCase(userRepo, logger)

	poolStats := scheduler.NewScheduler(cfg.Database.StatsEvery, pg.NewPoolStatsJob(conn), logger)
	poolStats.Start(ctx)
	defer poolStats.Stop()

	// ---- Background writes ----
	writes := worker.NewPool(cfg.Database.WriteWorkers, cfg.Database.WriteQueue, logger)
	writes.Start(context.Background())
	defer writes.Stop()

	// ---- Redis (optional) ----
	var (
		redisClient *red.Client
		rateLimiter *red.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Error().Err(err).Msg("redis")
			return 1
		}
		defer redisClient.Close()
		rateLimiter = red.NewRateLimiter(redisClient)
	}

	// ---- Facade ----
	link := application.LinkButton{Text: cfg.Bot.LinkText, URL: cfg.Bot.LinkURL}
	facade := application.NewBotFacade(userUC, writes, link, cfg.Database.WriteTimeout, logger)

	// ---- Telegram ----
	botAdapter, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, rateLimiter, cfg.Runtime.Dev, logger)
	if err != nil {
		logger.Error().Err(err).Msg("telegram")
		return 1
	}

	// ---- Single-instance lease ----
	pollCtx, cancelPoll := context.WithCancelCause(ctx)
	defer cancelPoll(nil)
	if redisClient != nil {
		lease := red.NewPollingLease(redisClient, botAdapter.BotID(), cfg.Redis.LeaseTTL, logger)
		if err := lease.Acquire(ctx); err != nil {
			if errors.Is(err, red.ErrLeaseHeld) {
				logger.Info().Msg("another instance holds the polling lease; exiting")
				return 0
			}
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("shutting down")
				return 0
			}
			logger.Error().Err(err).Msg("polling lease")
			return 1
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := lease.Release(rctx); err != nil {
				logger.Warn().Err(err).Msg("release polling lease")
			}
		}()
		go func() {
			if err := lease.Keep(pollCtx); err != nil {
				cancelPoll(err)
			}
		}()
	}

	// ---- Admin HTTP ----
	if cfg.Admin.Port > 0 {
		srv := api.NewServer(cfg.Admin, statsUC, conn, logger)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Msg("admin server stopped")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	// ---- Poll ----
	botAdapter.PrepareWebhook(ctx)
	return exitCode(logger, botAdapter.StartPolling(pollCtx), context.Cause(pollCtx))
}

func exitCode(logger *zerolog.Logger, pollErr, cause error) int {
	switch {
	case errors.Is(pollErr, tele.ErrPollingConflict):
		logger.Info().Msg("another bot instance is polling with this token; stop it or use a different token. exiting")
		return 0
	case pollErr != nil:
		logger.Error().Err(pollErr).Msg("telegram polling")
		return 1
	case errors.Is(cause, red.ErrLeaseLost):
		logger.Info().Msg("polling lease lost to another instance; exiting")
		return 0
	default:
		logger.Info().Msg("shutting down")
		return 0
	}
}
