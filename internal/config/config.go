package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the runtime settings of the catalog service.
type Config struct {
	Host string
	Port string
	Env  string

	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime time.Duration
	DBQueryTimeout    time.Duration

	BodyTimeout time.Duration
	BodyLimit   int

	LogLevel string
	LogFile  string

	MetricsEnabled bool

	RabbitMQURL   string
	RabbitMQQueue string
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Development reports whether verbose diagnostics are enabled.
func (c Config) Development() bool {
	return strings.EqualFold(c.Env, "development")
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "banco/database.sqlite")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "10s")
	v.SetDefault("DB_QUERY_TIMEOUT", "30s")
	v.SetDefault("BODY_TIMEOUT", "10s")
	v.SetDefault("BODY_LIMIT", 1<<20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "product_events")
}

// Load reads .env (if present), an optional config file and the environment.
// Real environment variables always win over .env entries.
func Load(v *viper.Viper) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	SetDefaults(v)
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		Host:           v.GetString("HOST"),
		Port:           v.GetString("PORT"),
		Env:            v.GetString("APP_ENV"),
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:          v.GetString("DB_DSN"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		LogFile:        v.GetString("LOG_FILE"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:  v.GetString("RABBITMQ_QUEUE"),
	}

	var err error
	if cfg.DBMaxOpenConns, err = intValue(v, "DB_MAX_OPEN_CONNS"); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxIdleConns, err = intValue(v, "DB_MAX_IDLE_CONNS"); err != nil {
		return Config{}, err
	}
	if cfg.BodyLimit, err = intValue(v, "BODY_LIMIT"); err != nil {
		return Config{}, err
	}
	if cfg.DBConnMaxIdleTime, err = durationValue(v, "DB_CONN_MAX_IDLE_TIME"); err != nil {
		return Config{}, err
	}
	if cfg.DBQueryTimeout, err = durationValue(v, "DB_QUERY_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.BodyTimeout, err = durationValue(v, "BODY_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if cfg.Port == "" {
		return Config{}, errors.New("PORT must not be empty")
	}
	return cfg, nil
}

func intValue(v *viper.Viper, key string) (int, error) {
	n, err := cast(v.Get(key), strconv.Atoi)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	d, err := cast(v.Get(key), time.ParseDuration)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// cast accepts values already typed by a config file or defaults, and parses
// strings coming from the environment strictly.
func cast[T any](raw any, parse func(string) (T, error)) (T, error) {
	var zero T
	switch val := raw.(type) {
	case T:
		return val, nil
	case string:
		return parse(strings.TrimSpace(val))
	case nil:
		return zero, nil
	default:
		return parse(fmt.Sprint(val))
	}
}
