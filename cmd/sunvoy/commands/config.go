package commands

import (
	"fmt"
	"sunvoy-scraper/internal/store"
	"sunvoy-scraper/internal/sunvoy"
	"sunvoy-scraper/lib/configutil"
	"sunvoy-scraper/lib/restyutil"
	"sunvoy-scraper/lib/telemetry"
	"time"
)

const (
	storeFile   = "file"
	storeSqlite = "sqlite"
)

type Config struct {
	BaseUrl  string `json:"base_url"`
	Email    string `json:"email"`
	Password string `json:"password"`

	// "file" or "sqlite"
	Store       string `json:"store"`
	SessionFile string `json:"session_file"`
	SqlitePath  string `json:"sqlite_path"`
	OutputFile  string `json:"output_file"`

	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	DumpHttpDir       string  `json:"dump_http_dir"`

	Otlp telemetry.OtlpConfig `json:"otlp"`
}

var defaultConfig = Config{
	BaseUrl:        sunvoy.DefaultBaseUrl,
	Email:          "demo@example.org",
	Password:       "test",
	Store:          storeFile,
	SessionFile:    ".session",
	SqlitePath:     "session.db",
	OutputFile:     "users.json",
	TimeoutSeconds: 30,
}

func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadWithDefaults(path, defaultConfig)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if cfg.Store != storeFile && cfg.Store != storeSqlite {
		return Config{}, fmt.Errorf("unknown store '%s', expected '%s' or '%s'", cfg.Store, storeFile, storeSqlite)
	}
	return cfg, nil
}

func (c Config) clientOptions(dump restyutil.Output) sunvoy.ClientOptions {
	return sunvoy.ClientOptions{
		BaseUrl:           c.BaseUrl,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		RequestsPerSecond: c.RequestsPerSecond,
		CloudflareBypass:  c.CloudflareBypass,
		HttpDump:          dump,
	}
}

func (c Config) credentials() sunvoy.Credentials {
	return sunvoy.Credentials{
		Email:    c.Email,
		Password: c.Password,
	}
}

// openTokenStore returns the configured token store and a function that releases it.
func (c Config) openTokenStore() (sunvoy.TokenStore, func() error, error) {
	if c.Store == storeSqlite {
		s, err := store.OpenSQLiteTokenStore(c.SqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return store.NewFileTokenStore(c.SessionFile), func() error { return nil }, nil
}
