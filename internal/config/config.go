package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port          string
	AllowedOrigin string
	LogLevel      string
	LogFormat     string
	// Provider
	ProviderBaseURL string
	ProviderAPIKey  string
	Model           string
	PromptFile      string
	ProviderTimeout time.Duration
	// Credential source: env | file | database
	CredentialSource  string
	CredentialFile    string
	CredentialService string
	// Database
	DatabaseURL   string
	MigrationsDir string
	// Relay as seen by the dispatcher; empty means this server's own relay route
	RelayURL     string
	RelayTimeout time.Duration
	// Session behaviour
	TypingQuiet  time.Duration
	SessionTTL   time.Duration
	StreamFPS    int
	MaxExchanges int
	SeedGreeting bool
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Port:              getEnvDefault("PORT", "8080"),
		AllowedOrigin:     getEnvDefault("ALLOWED_ORIGIN", "*"),
		LogLevel:          getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:         getEnvDefault("LOG_FORMAT", "console"),
		ProviderBaseURL:   getEnvDefault("XAI_API_BASE", "https://api.x.ai/v1"),
		ProviderAPIKey:    os.Getenv("XAI_API_KEY"),
		Model:             os.Getenv("XAI_MODEL"),
		PromptFile:        getEnvDefault("PROMPT_FILE", "prompts/relay.yaml"),
		ProviderTimeout:   getEnvDurationDefault("PROVIDER_TIMEOUT", 45*time.Second),
		CredentialSource:  strings.ToLower(getEnvDefault("CREDENTIAL_SOURCE", "env")),
		CredentialFile:    getEnvDefault("CREDENTIAL_FILE", "data/provider_key.json"),
		CredentialService: getEnvDefault("CREDENTIAL_SERVICE", "xai"),
		DatabaseURL:       os.Getenv("DB_URL"),
		MigrationsDir:     getEnvDefault("MIGRATIONS_DIR", "./migrations"),
		RelayURL:          os.Getenv("RELAY_URL"),
		RelayTimeout:      getEnvDurationDefault("RELAY_TIMEOUT", 60*time.Second),
		TypingQuiet:       getEnvDurationDefault("TYPING_QUIET", time.Second),
		SessionTTL:        getEnvDurationDefault("SESSION_TTL", 30*time.Minute),
		StreamFPS:         getEnvIntDefault("STREAM_FPS", 30),
		MaxExchanges:      getEnvIntDefault("MAX_EXCHANGES", 200),
		SeedGreeting:      getEnvBoolDefault("SEED_GREETING", true),
	}
	if cfg.CredentialSource == "env" && cfg.ProviderAPIKey == "" {
		log.Warn().Msg("XAI_API_KEY is not set; relay calls will fail until provided")
	}
	return cfg
}

// SelfRelayURL is the relay endpoint the dispatcher calls when RELAY_URL is unset.
func (c Config) SelfRelayURL() string {
	if strings.TrimSpace(c.RelayURL) != "" {
		return c.RelayURL
	}
	return "http://127.0.0.1:" + c.Port + "/api/relay"
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring non-integer value")
	}
	return def
}

// getEnvDurationDefault accepts Go durations ("1.5s") or bare milliseconds ("1000").
func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid duration")
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}
