package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Config struct {
	Env       string
	Host      string
	Port      int
	APIPrefix string

	// ExposeErrorDetails returns raw driver errors to clients in 500 responses.
	ExposeErrorDetails bool

	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	CORS     CORSConfig
	Log      LogConfig
}

// DatabaseConfig describes the connection pool. Timeouts and delays are
// read from the environment in milliseconds.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	ConnectionLimit       int
	QueueLimit            int
	MaxIdle               int
	IdleTimeout           time.Duration
	WaitForConnections    bool
	EnableKeepAlive       bool
	KeepAliveInitialDelay time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig toggles the student read cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level         string
	Format        string
	AccessLogPath string
}

// ValidationError lists every required setting missing or malformed at startup.
type ValidationError struct {
	Missing []string
	Invalid map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required settings: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Invalid) > 0 {
		keys := make([]string, 0, len(e.Invalid))
		for k := range e.Invalid {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		invalid := make([]string, 0, len(keys))
		for _, k := range keys {
			invalid = append(invalid, fmt.Sprintf("%s (%s)", k, e.Invalid[k]))
		}
		parts = append(parts, fmt.Sprintf("invalid settings: %s", strings.Join(invalid, ", ")))
	}
	return "config: " + strings.Join(parts, "; ")
}

func (e *ValidationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	verr := &ValidationError{Invalid: map[string]string{}}

	cfg := &Config{}
	cfg.Env = v.GetString("ENV")
	cfg.Host = v.GetString("HOST")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.ExposeErrorDetails = v.GetBool("EXPOSE_ERROR_DETAILS")

	required := map[string]string{}
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME"} {
		value := strings.TrimSpace(v.GetString(key))
		if value == "" {
			verr.Missing = append(verr.Missing, key)
			continue
		}
		required[key] = value
	}

	var dbPort int
	if raw, ok := required["DB_PORT"]; ok {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			verr.Invalid["DB_PORT"] = "must be a port number"
		}
		dbPort = port
	}

	driver := strings.ToLower(v.GetString("DB_DRIVER"))
	if driver != DriverMySQL && driver != DriverPostgres {
		verr.Invalid["DB_DRIVER"] = "must be mysql or postgres"
	}

	cfg.Database = DatabaseConfig{
		Driver:                driver,
		Host:                  required["DB_HOST"],
		Port:                  dbPort,
		User:                  required["DB_USER"],
		Password:              required["DB_PASSWORD"],
		Name:                  required["DB_NAME"],
		SSLMode:               v.GetString("DB_SSL_MODE"),
		ConnectionLimit:       v.GetInt("DB_CONNECTION_LIMIT"),
		QueueLimit:            v.GetInt("DB_QUEUE_LIMIT"),
		MaxIdle:               v.GetInt("DB_MAX_IDLE"),
		IdleTimeout:           millis(v.GetInt64("DB_IDLE_TIMEOUT")),
		WaitForConnections:    v.GetBool("DB_WAIT_FOR_CONNECTIONS"),
		EnableKeepAlive:       v.GetBool("DB_ENABLE_KEEP_ALIVE"),
		KeepAliveInitialDelay: millis(v.GetInt64("DB_KEEP_ALIVE_INITIAL_DELAY")),
	}
	if cfg.Database.ConnectionLimit <= 0 {
		verr.Invalid["DB_CONNECTION_LIMIT"] = "must be positive"
	}
	if cfg.Database.QueueLimit < 0 {
		verr.Invalid["DB_QUEUE_LIMIT"] = "must not be negative"
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_STUDENT_CACHE"),
		TTL:     parseDuration(v.GetString("STUDENT_CACHE_TTL"), 5*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:         v.GetString("LOG_LEVEL"),
		Format:        v.GetString("LOG_FORMAT"),
		AccessLogPath: v.GetString("ACCESS_LOG_PATH"),
	}

	if !verr.empty() {
		return nil, verr
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("EXPOSE_ERROR_DETAILS", false)

	v.SetDefault("DB_DRIVER", DriverMySQL)
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_CONNECTION_LIMIT", 10)
	v.SetDefault("DB_QUEUE_LIMIT", 0)
	v.SetDefault("DB_MAX_IDLE", 10)
	v.SetDefault("DB_IDLE_TIMEOUT", 10000)
	v.SetDefault("DB_WAIT_FOR_CONNECTIONS", false)
	v.SetDefault("DB_ENABLE_KEEP_ALIVE", false)
	v.SetDefault("DB_KEEP_ALIVE_INITIAL_DELAY", 0)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_STUDENT_CACHE", false)
	v.SetDefault("STUDENT_CACHE_TTL", "5m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ACCESS_LOG_PATH", "")
}

func millis(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
