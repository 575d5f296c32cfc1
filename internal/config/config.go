package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, resolved from flags with environment
// variable defaults. A .env file in the working directory is loaded first.
type Config struct {
	ShuttleAPIKey  string
	ShuttleBaseURL string
	DefaultModel   string
	RequestTimeout time.Duration

	DiscordToken string
	MaxHistory   int

	RateLimitMessages int
	RateLimitInterval time.Duration
	RateLimitBlock    time.Duration

	DataDir         string
	AdminListenAddr string
}

func Load() *Config {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}

	flag.StringVar(&cfg.ShuttleAPIKey, "shuttle-api-key", getEnv("SHUTTLEAI_API_KEY", ""), "ShuttleAI API key")
	flag.StringVar(&cfg.ShuttleBaseURL, "shuttle-base-url", getEnv("SHUTTLEAI_BASE_URL", "https://api.shuttleai.app"), "ShuttleAI API base URL")
	flag.StringVar(&cfg.DefaultModel, "default-model", getEnv("DEFAULT_MODEL", "shuttle-3-mini"), "Model used when a user has not picked one")
	flag.StringVar(&cfg.DiscordToken, "discord-token", getEnv("DISCORD_TOKEN", ""), "Discord bot token")
	flag.StringVar(&cfg.DataDir, "data-dir", getEnv("DATA_DIR", "data"), "Directory for the settings database")
	flag.StringVar(&cfg.AdminListenAddr, "admin-listen-addr", getEnv("ADMIN_LISTEN_ADDR", ":8090"), "Management API listen address")
	flag.IntVar(&cfg.MaxHistory, "max-history", getEnvInt("MAX_HISTORY", 8), "Messages of conversation history kept per user")
	flag.IntVar(&cfg.RateLimitMessages, "rate-limit-messages", getEnvInt("RATE_LIMIT_MESSAGES", 3), "Messages allowed per rate-limit interval")

	timeoutStr := getEnv("REQUEST_TIMEOUT", "120s")
	defaultTimeout, _ := time.ParseDuration(timeoutStr)
	if defaultTimeout == 0 {
		defaultTimeout = 120 * time.Second
	}
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", defaultTimeout, "Completion round-trip timeout")
	flag.DurationVar(&cfg.RateLimitInterval, "rate-limit-interval", getEnvDuration("RATE_LIMIT_INTERVAL", 5*time.Second), "Rate-limit window")
	flag.DurationVar(&cfg.RateLimitBlock, "rate-limit-block", getEnvDuration("RATE_LIMIT_BLOCK", 3*time.Minute), "Cooldown once the rate limit is exceeded")

	flag.Parse()
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
