// Package platform opens the backend the configuration selects and hands
// the ports to the binaries.
package platform

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/adapters/localauth"
	"woodheaven_farms/internal/adapters/localfs"
	"woodheaven_farms/internal/adapters/notify"
	redisad "woodheaven_farms/internal/adapters/redis"
	"woodheaven_farms/internal/adapters/supabase"
	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
	"woodheaven_farms/internal/shared"
	"woodheaven_farms/internal/storage/memory"
	mysqlrepo "woodheaven_farms/internal/storage/mysql"
)

type Backend struct {
	Records  domain.RecordStore
	Objects  domain.ObjectStore
	Auth     domain.Authenticator
	Cache    domain.Cache
	Notifier domain.LeadNotifier
	// Files serves locally stored objects; nil when objects live in the BaaS.
	Files http.Handler

	closers []func() error
}

func Open(ctx context.Context, cfg shared.Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backend{}
	var err error
	switch cfg.Backend {
	case shared.BackendSupabase:
		err = b.openSupabase(cfg)
	case shared.BackendMySQL:
		err = b.openMySQL(ctx, cfg)
	default:
		err = b.openMemory(ctx, cfg)
	}
	if err != nil {
		b.Close()
		return nil, err
	}

	if cfg.RedisAddr != "" {
		c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		perr := c.Ping(pctx)
		cancel()
		if perr != nil {
			log.Warn().Err(perr).Str("addr", cfg.RedisAddr).Msg("redis unreachable; caching disabled")
			_ = c.Close()
		} else {
			b.Cache = c
			b.closers = append(b.closers, c.Close)
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache enabled")
		}
	}
	if cfg.ResendAPIKey != "" {
		b.Notifier = notify.NewResend(cfg.ResendAPIKey, cfg.NotifyFrom, cfg.NotifyTo)
	}
	log.Info().Str("backend", string(cfg.Backend)).Msg("backend ready")
	return b, nil
}

func (b *Backend) openSupabase(cfg shared.Config) error {
	c, err := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, cfg.SupabaseRPS)
	if err != nil {
		return err
	}
	if cfg.SupabaseServiceKey == "" {
		log.Warn().Msg("SUPABASE_SERVICE_KEY is empty; record writes run under row level security")
	}
	b.Records = c.Records()
	b.Objects = c.Storage()
	b.Auth = c.Auth()
	return nil
}

func (b *Backend) openMySQL(ctx context.Context, cfg shared.Config) error {
	dsn, err := mysqlrepo.DSN(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	b.closers = append(b.closers, db.Close)
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	log.Info().Msg("database connection ok")

	b.Records = mysqlrepo.New(db)
	return b.openLocal(cfg, cfg.JWTSecret)
}

// openMemory is mock mode: nothing persists, and a dev admin plus the
// default content are seeded so the site renders.
func (b *Backend) openMemory(ctx context.Context, cfg shared.Config) error {
	store := memory.New()
	b.Records = store

	secret := cfg.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		secret = hex.EncodeToString(buf)
	}
	if err := b.openLocal(cfg, secret); err != nil {
		return err
	}

	hash, err := localauth.HashPassword(cfg.DevAdminPassword)
	if err != nil {
		return err
	}
	if err := app.NewAuthService(b.Auth, store).AddAdmin(ctx, cfg.DevAdminEmail, hash); err != nil {
		return err
	}
	if err := app.Seed(ctx, store); err != nil {
		return err
	}
	log.Warn().Str("email", cfg.DevAdminEmail).Msg("mock mode: dev admin seeded")
	return nil
}

func (b *Backend) openLocal(cfg shared.Config, secret string) error {
	auth, err := localauth.New(b.Records, secret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	fs, err := localfs.New(cfg.UploadDir, cfg.UploadPublicURLPrefix)
	if err != nil {
		return err
	}
	b.Auth = auth
	b.Objects = fs
	b.Files = fs.Handler()
	return nil
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
