package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Association backends supported for thread to discussion records.
const (
	AssociationBackendDatabase = "database"
	AssociationBackendRedis    = "redis"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	RealtimeChannel       string
	JWTSecret             string
	SiteURL               string
	NotificationKeepAlive time.Duration
	Discuss               DiscussConfig
}

// DiscussConfig tunes the discuss command.
type DiscussConfig struct {
	AppUsername        string
	AssociationBackend string
	ClaimThreads       bool
	ClaimTTL           time.Duration
	RateLimit          int
	RateWindow         time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Discuss")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.channel", "gema:realtime")
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("discuss.app_username", "discuss.bot")
	v.SetDefault("discuss.association_backend", AssociationBackendDatabase)
	v.SetDefault("discuss.claim_threads", true)
	v.SetDefault("discuss.claim_ttl", "2m")
	v.SetDefault("discuss.rate_limit", 20)
	v.SetDefault("discuss.rate_window", "1m")

	keepAlive, err := parseDuration(v, "notifications.keepalive")
	if err != nil {
		return Config{}, err
	}
	claimTTL, err := parseDuration(v, "discuss.claim_ttl")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "discuss.rate_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		RealtimeChannel:       v.GetString("realtime.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		SiteURL:               strings.TrimRight(strings.TrimSpace(v.GetString("site.url")), "/"),
		NotificationKeepAlive: keepAlive,
		Discuss: DiscussConfig{
			AppUsername:        strings.TrimSpace(v.GetString("discuss.app_username")),
			AssociationBackend: strings.ToLower(strings.TrimSpace(v.GetString("discuss.association_backend"))),
			ClaimThreads:       v.GetBool("discuss.claim_threads"),
			ClaimTTL:           claimTTL,
			RateLimit:          v.GetInt("discuss.rate_limit"),
			RateWindow:         rateWindow,
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}
	if c.SiteURL == "" {
		return fmt.Errorf("site url must be provided")
	}
	parsed, err := url.Parse(c.SiteURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("site url %q must be an absolute url", c.SiteURL)
	}
	if c.Discuss.AppUsername == "" {
		return fmt.Errorf("discuss app username must not be empty")
	}

	switch c.Discuss.AssociationBackend {
	case AssociationBackendDatabase:
	case AssociationBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis url is required for the redis association backend")
		}
	default:
		return fmt.Errorf("unknown association backend %q", c.Discuss.AssociationBackend)
	}

	if c.Discuss.ClaimTTL <= 0 {
		return fmt.Errorf("discuss claim ttl must be positive")
	}

	return nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}
