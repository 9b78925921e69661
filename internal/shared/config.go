package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Backend names which record store the process runs against.
type Backend string

const (
	BackendSupabase Backend = "supabase"
	BackendMySQL    Backend = "mysql"
	BackendMemory   Backend = "memory"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	Backend     Backend

	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseRPS        int

	MySQLDSN string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	UploadDir             string
	UploadMaxBytes        int64
	UploadConcurrency     int
	UploadBatchRetention  time.Duration
	UploadPublicURLPrefix string

	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool
	CORSOrigins  []string

	EnquiryRatePerMin int

	ResendAPIKey string
	NotifyFrom   string
	NotifyTo     string

	DevAdminEmail    string
	DevAdminPassword string
}

func (c Config) IsDev() bool { return c.AppEnv == "dev" || c.AppEnv == "development" }

// Load reads the environment. A .env file in the working directory is
// applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric setting")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		SupabaseURL:        strings.TrimRight(env("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    env("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: env("SUPABASE_SERVICE_KEY", ""),
		SupabaseRPS:        atoi("SUPABASE_RPS", 10),

		MySQLDSN: env("MYSQL_DSN", ""),

		RedisAddr: env("REDIS_ADDR", ""),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,

		UploadDir:             env("UPLOAD_DIR", "./data/uploads"),
		UploadMaxBytes:        int64(atoi("UPLOAD_MAX_BYTES", 15<<20)),
		UploadConcurrency:     atoi("UPLOAD_CONCURRENCY", 4),
		UploadBatchRetention:  time.Duration(atoi("UPLOAD_BATCH_RETENTION_MINUTES", 30)) * time.Minute,
		UploadPublicURLPrefix: env("UPLOAD_PUBLIC_URL", "/uploads"),

		JWTSecret:   env("JWT_SECRET", ""),
		SessionTTL:  time.Duration(atoi("SESSION_TTL_HOURS", 12)) * time.Hour,
		CORSOrigins: splitList(env("CORS_ORIGINS", "*")),

		EnquiryRatePerMin: atoi("ENQUIRY_RATE_PER_MIN", 6),

		ResendAPIKey: env("RESEND_API_KEY", ""),
		NotifyFrom:   env("NOTIFY_FROM", "enquiries@woodheavenfarms.com"),
		NotifyTo:     env("NOTIFY_TO", ""),

		DevAdminEmail:    strings.ToLower(env("DEV_ADMIN_EMAIL", "admin@woodheaven.com")),
		DevAdminPassword: env("DEV_ADMIN_PASSWORD", "admin123"),
	}
	c.CookieSecure = envBool("COOKIE_SECURE", !c.IsDev())
	c.Backend = c.resolveBackend(env("BACKEND", "auto"))

	if c.Backend == BackendMemory {
		log.Warn().Msg("no backend configured; running in mock mode with an in-memory store")
	}
	if c.ResendAPIKey == "" {
		log.Info().Msg("RESEND_API_KEY is empty; lead notifications disabled")
	}
	return c
}

func (c Config) resolveBackend(v string) Backend {
	switch Backend(strings.ToLower(v)) {
	case BackendSupabase:
		return BackendSupabase
	case BackendMySQL:
		return BackendMySQL
	case BackendMemory:
		return BackendMemory
	}
	switch {
	case c.SupabaseURL != "" && c.SupabaseAnonKey != "":
		return BackendSupabase
	case c.MySQLDSN != "":
		return BackendMySQL
	}
	return BackendMemory
}

// Validate reports settings the selected backend cannot run without.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required"))
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			errs = append(errs, errors.New("MYSQL_DSN is required"))
		}
		if len(c.JWTSecret) < 16 {
			errs = append(errs, errors.New("JWT_SECRET of at least 16 bytes is required"))
		}
	case BackendMemory:
		if !c.IsDev() && c.AppEnv != "test" {
			errs = append(errs, fmt.Errorf("mock mode refused in APP_ENV=%s; configure SUPABASE_URL or MYSQL_DSN", c.AppEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.UploadConcurrency <= 0 {
		errs = append(errs, errors.New("UPLOAD_CONCURRENCY must be positive"))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
