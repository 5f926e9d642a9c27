package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/SscSPs/exchange_rate_api/internal/apperrors"
	"github.com/SscSPs/exchange_rate_api/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Setting keys. AlphaVantageAPIKeyEnvKey holds the *name* of the environment
// variable carrying the API key, not the key itself.
const (
	AlphaVantageAPIKeyEnvKey = "ALPHAVANTAGE_API_KEY_ENV"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	PublisherDriverKafka = "kafka"
	PublisherDriverRedis = "redis"
	PublisherDriverLog   = "log"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL    string
	Port           string
	IsProduction   bool
	EnableDBCheck  bool
	LogLevel       string
	StoreDriver    string
	MigrationsPath string

	// External quote provider
	AlphaVantageBaseURL string
	ProviderTimeout     time.Duration

	// Change notifications
	PublisherDriver  string
	KafkaBrokers     []string
	QueueName        string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PublishOn        map[domain.ChangeKind]bool
	PublishTimeout   time.Duration
	UpdateMaxRetries int

	// HTTP boundary
	JWTSecret          string
	RateLimit          string
	CORSAllowedOrigins []string
}

func setDefaults() {
	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	viper.SetDefault("MIGRATIONS_PATH", "file://migrations")
	viper.SetDefault("ALPHAVANTAGE_BASE_URL", "https://www.alphavantage.co")
	viper.SetDefault(AlphaVantageAPIKeyEnvKey, "ALPHAVANTAGE_API_KEY")
	viper.SetDefault("PROVIDER_TIMEOUT", "10s")
	viper.SetDefault("PUBLISHER_DRIVER", PublisherDriverLog)
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("MQ_QUEUE_NAME", "exchangeRatesQueue")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PUBLISH_ON", "created,updated")
	viper.SetDefault("PUBLISH_TIMEOUT", "5s")
	viper.SetDefault("UPDATE_MAX_RETRIES", 5)
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("RATE_LIMIT", "100-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	setDefaults()
	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:         viper.GetString("PGSQL_URL"),
		Port:                viper.GetString("PORT"),
		IsProduction:        viper.GetBool("IS_PRODUCTION"),
		EnableDBCheck:       viper.GetBool("ENABLE_DB_CHECK"),
		LogLevel:            strings.ToLower(viper.GetString("LOG_LEVEL")),
		StoreDriver:         strings.ToLower(viper.GetString("STORE_DRIVER")),
		MigrationsPath:      viper.GetString("MIGRATIONS_PATH"),
		AlphaVantageBaseURL: strings.TrimRight(viper.GetString("ALPHAVANTAGE_BASE_URL"), "/"),
		PublisherDriver:     strings.ToLower(viper.GetString("PUBLISHER_DRIVER")),
		KafkaBrokers:        splitList(viper.GetString("KAFKA_BROKERS")),
		QueueName:           viper.GetString("MQ_QUEUE_NAME"),
		RedisAddr:           viper.GetString("REDIS_ADDR"),
		RedisPassword:       viper.GetString("REDIS_PASSWORD"),
		RedisDB:             viper.GetInt("REDIS_DB"),
		UpdateMaxRetries:    viper.GetInt("UPDATE_MAX_RETRIES"),
		JWTSecret:           viper.GetString("JWT_SECRET"),
		RateLimit:           viper.GetString("RATE_LIMIT"),
		CORSAllowedOrigins:  splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.Port == "" {
		cfg.Port = "8080" // Default port
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("%w: PGSQL_URL is required when STORE_DRIVER=%s", apperrors.ErrConfiguration, StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("%w: unknown STORE_DRIVER %q", apperrors.ErrConfiguration, cfg.StoreDriver)
	}

	switch cfg.PublisherDriver {
	case PublisherDriverKafka, PublisherDriverRedis, PublisherDriverLog:
	default:
		return nil, fmt.Errorf("%w: unknown PUBLISHER_DRIVER %q", apperrors.ErrConfiguration, cfg.PublisherDriver)
	}

	var err error
	if cfg.ProviderTimeout, err = parseDuration("PROVIDER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PublishTimeout, err = parseDuration("PUBLISH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	cfg.PublishOn, err = domain.ParseChangeKinds(viper.GetString("PUBLISH_ON"))
	if err != nil {
		return nil, fmt.Errorf("%w: PUBLISH_ON: %v", apperrors.ErrConfiguration, err)
	}

	if cfg.UpdateMaxRetries < 0 {
		return nil, fmt.Errorf("%w: UPDATE_MAX_RETRIES must not be negative", apperrors.ErrConfiguration)
	}

	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set. Mutating exchange rate routes are unauthenticated.")
	}

	return cfg, nil
}

// PublishKinds returns the enabled change kinds as a slice.
func (c *Config) PublishKinds() []domain.ChangeKind {
	kinds := make([]domain.ChangeKind, 0, len(c.PublishOn))
	for _, k := range []domain.ChangeKind{domain.ChangeCreated, domain.ChangeUpdated, domain.ChangeDeleted} {
		if c.PublishOn[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// ResolveIndirect reads settingKey, whose value names another variable, and
// returns that variable's value. Either step coming back empty yields a
// *apperrors.ConfigError naming the stage and key that was missing.
func ResolveIndirect(settingKey string) (string, error) {
	name := strings.TrimSpace(viper.GetString(settingKey))
	if name == "" {
		return "", apperrors.NewConfigError(apperrors.StageSetting, settingKey)
	}
	// Env var names are case-sensitive, so the value is not read through viper.
	value, _ := os.LookupEnv(name)
	if value == "" {
		return "", apperrors.NewConfigError(apperrors.StageValue, name)
	}
	return value, nil
}

// AlphaVantageAPIKey resolves the provider key through its indirection setting.
// It is read on every call so a key rotated in the environment is picked up.
func AlphaVantageAPIKey() (string, error) {
	return ResolveIndirect(AlphaVantageAPIKeyEnvKey)
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := viper.GetString(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: invalid value for %s (%q)", apperrors.ErrConfiguration, key, raw)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
