package postgres

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-start-bot/internal/config"
	"telegram-start-bot/internal/domain"
)

type dialFunc func(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error)

func dialPool(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Connector owns the process-wide *pgxpool.Pool. It is created once in main
// and handed to whatever needs the store.
type Connector struct {
	cfg config.DatabaseConfig
	log *zerolog.Logger

	dial      dialFunc
	closePool func(*pgxpool.Pool)

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func NewConnector(cfg config.DatabaseConfig, logger *zerolog.Logger) *Connector {
	return &Connector{
		cfg:       cfg,
		log:       logger,
		dial:      dialPool,
		closePool: (*pgxpool.Pool).Close,
	}
}

// Acquire returns the pool, establishing it on the first call. Concurrent
// callers block until the first establishment finishes and then share its
// result. A failed establishment is not memoized.
func (c *Connector) Acquire(ctx context.Context) (*pgxpool.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool != nil {
		return c.pool, nil
	}
	if c.cfg.URL == "" {
		return nil, errors.New("database url is empty")
	}

	pool, err := c.establish(ctx)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	return pool, nil
}

func (c *Connector) establish(ctx context.Context) (*pgxpool.Pool, error) {
	pcfg, err := c.parse()
	if err != nil {
		return nil, err
	}
	mode := sslMode(c.cfg.URL)
	useTLS := pcfg.ConnConfig.TLSConfig != nil
	// verify-ca and verify-full already carry exactly what the operator asked for.
	pinned := mode == "verify-ca" || mode == "verify-full"
	if useTLS && !pinned {
		setTLS(pcfg, verifiedTLS)
	}

	pool, err := c.dialWithTimeout(ctx, pcfg)
	if err == nil {
		c.log.Info().Bool("tls", useTLS).Str("sslmode", mode).Msg("database connection established")
		return pool, nil
	}
	if !useTLS || pinned || c.cfg.StrictTLS {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	// Local development against a mismatched certificate: retry once
	// without peer verification.
	c.log.Warn().Err(err).Msg("verified TLS connection failed; retrying without certificate verification")
	relaxed, perr := c.parse()
	if perr != nil {
		return nil, perr
	}
	setTLS(relaxed, relaxedTLS)
	pool, rerr := c.dialWithTimeout(ctx, relaxed)
	if rerr != nil {
		return nil, fmt.Errorf("connect postgres (relaxed tls after %v): %w", err, rerr)
	}
	c.log.Warn().Msg("database connection established WITHOUT certificate verification")
	return pool, nil
}

// verifiedTLS keeps the CA pool and client certificate parsed from the DSN
// and turns on chain and hostname verification.
func verifiedTLS(host string, base *tls.Config) *tls.Config {
	cfg := base.Clone()
	cfg.InsecureSkipVerify = false
	cfg.VerifyPeerCertificate = nil
	cfg.ServerName = host
	if cfg.MinVersion < tls.VersionTLS12 {
		cfg.MinVersion = tls.VersionTLS12
	}
	return cfg
}

// relaxedTLS keeps the client certificate but skips peer verification.
func relaxedTLS(host string, base *tls.Config) *tls.Config {
	cfg := base.Clone()
	cfg.InsecureSkipVerify = true //nolint:gosec // gated by database.strict_tls
	cfg.VerifyPeerCertificate = nil
	cfg.ServerName = host
	return cfg
}

// sslMode reports the sslmode of a URL or keyword/value DSN, falling back
// to PGSSLMODE like libpq.
func sslMode(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		if m := u.Query().Get("sslmode"); m != "" {
			return m
		}
	} else {
		for _, f := range strings.Fields(dsn) {
			if v, ok := strings.CutPrefix(f, "sslmode="); ok {
				return strings.Trim(v, "'")
			}
		}
	}
	return os.Getenv("PGSSLMODE")
}

func (c *Connector) parse() (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if c.cfg.MaxConns > 0 {
		pcfg.MaxConns = c.cfg.MaxConns
	}
	return pcfg, nil
}

func (c *Connector) dialWithTimeout(ctx context.Context, pcfg *pgxpool.Config) (*pgxpool.Pool, error) {
	timeout := c.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.dial(ctx, pcfg)
}

// setTLS rewrites the TLS settings of the primary host and every TLS
// fallback from what pgx parsed for them. Plaintext fallbacks
// (sslmode=prefer) are left untouched.
func setTLS(pcfg *pgxpool.Config, mk func(host string, base *tls.Config) *tls.Config) {
	cc := pcfg.ConnConfig
	cc.TLSConfig = mk(cc.Host, cc.TLSConfig)
	for _, fb := range cc.Fallbacks {
		if fb.TLSConfig != nil {
			fb.TLSConfig = mk(fb.Host, fb.TLSConfig)
		}
	}
}

// Pool returns the established pool or nil.
func (c *Connector) Pool() *pgxpool.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool
}

// Ping checks the established pool. It does not establish one.
func (c *Connector) Ping(ctx context.Context) error {
	pool := c.Pool()
	if pool == nil {
		return domain.ErrStoreUnavailable
	}
	return pool.Ping(ctx)
}

// Close releases the pool. Safe to call when never acquired, and more than once.
func (c *Connector) Close() {
	c.mu.Lock()
	pool := c.pool
	c.pool = nil
	c.mu.Unlock()

	if pool == nil {
		return
	}
	c.closePool(pool)
	c.log.Info().Msg("database connection closed")
}
