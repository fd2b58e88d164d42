package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/formador-scheduler/internal/availability"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Availability AvailabilityConfig
	Calendar     CalendarConfig
	Audit        AuditConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	ApplicationName string
	MaxOpenConns    int
	MaxIdleConns    int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig validates access tokens issued by the identity provider.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AvailabilityConfig holds the institutional scheduling policy.
type AvailabilityConfig struct {
	Timezone            string
	TravelBufferMinutes int
	DailyHourLimit      float64
	BusinessStart       string
	BusinessEnd         string
	MinNoticeHard       time.Duration
	MinNoticeSoft       time.Duration
	CriticalCodes       []string
	SuggestDaysAhead    int
	SuggestMax          int
	SuggestTimeout      time.Duration
	LockTTL             time.Duration
}

// CalendarConfig tunes the monthly matrix cache.
type CalendarConfig struct {
	MatrixCacheEnabled bool
	MatrixCacheTTL     time.Duration
	WarmCron           string
}

// AuditConfig configures the asynchronous audit pipeline.
type AuditConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		ApplicationName: v.GetString("DB_APPLICATION_NAME"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Availability = AvailabilityConfig{
		Timezone:            v.GetString("AVAILABILITY_TIMEZONE"),
		TravelBufferMinutes: v.GetInt("AVAILABILITY_TRAVEL_BUFFER_MINUTES"),
		DailyHourLimit:      v.GetFloat64("AVAILABILITY_DAILY_HOUR_LIMIT"),
		BusinessStart:       v.GetString("AVAILABILITY_BUSINESS_START"),
		BusinessEnd:         v.GetString("AVAILABILITY_BUSINESS_END"),
		MinNoticeHard:       parseDuration(v.GetString("AVAILABILITY_MIN_NOTICE_HARD"), 24*time.Hour),
		MinNoticeSoft:       parseDuration(v.GetString("AVAILABILITY_MIN_NOTICE_SOFT"), 7*24*time.Hour),
		CriticalCodes:       splitAndTrim(v.GetString("AVAILABILITY_CRITICAL_CODES")),
		SuggestDaysAhead:    v.GetInt("AVAILABILITY_SUGGEST_DAYS_AHEAD"),
		SuggestMax:          v.GetInt("AVAILABILITY_SUGGEST_MAX"),
		SuggestTimeout:      parseDuration(v.GetString("AVAILABILITY_SUGGEST_TIMEOUT"), 5*time.Second),
		LockTTL:             parseDuration(v.GetString("AVAILABILITY_LOCK_TTL"), 10*time.Second),
	}

	cfg.Calendar = CalendarConfig{
		MatrixCacheEnabled: v.GetBool("CALENDAR_MATRIX_CACHE_ENABLED"),
		MatrixCacheTTL:     parseDuration(v.GetString("CALENDAR_MATRIX_CACHE_TTL"), 15*time.Minute),
		WarmCron:           v.GetString("CALENDAR_WARM_CRON"),
	}

	cfg.Audit = AuditConfig{
		Workers:      v.GetInt("AUDIT_WORKERS"),
		BufferSize:   v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxRetries:   v.GetInt("AUDIT_MAX_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("AUDIT_RETRY_DELAY"), time.Second),
		KafkaEnabled: v.GetBool("AUDIT_KAFKA_ENABLED"),
		KafkaBrokers: splitAndTrim(v.GetString("AUDIT_KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("AUDIT_KAFKA_TOPIC"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "formador_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_APPLICATION_NAME", "formador-scheduler")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AVAILABILITY_TIMEZONE", "Europe/Lisbon")
	v.SetDefault("AVAILABILITY_TRAVEL_BUFFER_MINUTES", 90)
	v.SetDefault("AVAILABILITY_DAILY_HOUR_LIMIT", 8)
	v.SetDefault("AVAILABILITY_BUSINESS_START", "08:00")
	v.SetDefault("AVAILABILITY_BUSINESS_END", "17:00")
	v.SetDefault("AVAILABILITY_MIN_NOTICE_HARD", "24h")
	v.SetDefault("AVAILABILITY_MIN_NOTICE_SOFT", "168h")
	v.SetDefault("AVAILABILITY_CRITICAL_CODES", "T,X")
	v.SetDefault("AVAILABILITY_SUGGEST_DAYS_AHEAD", 30)
	v.SetDefault("AVAILABILITY_SUGGEST_MAX", 10)
	v.SetDefault("AVAILABILITY_SUGGEST_TIMEOUT", "5s")
	v.SetDefault("AVAILABILITY_LOCK_TTL", "10s")

	v.SetDefault("CALENDAR_MATRIX_CACHE_ENABLED", true)
	v.SetDefault("CALENDAR_MATRIX_CACHE_TTL", "15m")
	v.SetDefault("CALENDAR_WARM_CRON", "0 2 * * *")

	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "1s")
	v.SetDefault("AUDIT_KAFKA_ENABLED", false)
	v.SetDefault("AUDIT_KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "formador.audit")
}

// EngineConfig builds the immutable engine configuration.
func (c AvailabilityConfig) EngineConfig() (availability.Config, error) {
	zone, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return availability.Config{}, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	cfg := availability.DefaultConfig(zone)

	if c.TravelBufferMinutes > 0 {
		cfg.TravelBuffer = time.Duration(c.TravelBufferMinutes) * time.Minute
	}
	if c.DailyHourLimit > 0 {
		cfg.DailyHourLimit = c.DailyHourLimit
	}
	if c.BusinessStart != "" || c.BusinessEnd != "" {
		start, err := availability.ParseClock(c.BusinessStart)
		if err != nil {
			return availability.Config{}, fmt.Errorf("business start: %w", err)
		}
		end, err := availability.ParseClock(c.BusinessEnd)
		if err != nil {
			return availability.Config{}, fmt.Errorf("business end: %w", err)
		}
		if end.Minutes() <= start.Minutes() {
			return availability.Config{}, fmt.Errorf("business hours %s-%s are empty", start, end)
		}
		cfg.BusinessStart, cfg.BusinessEnd = start, end
	}
	if c.MinNoticeHard > 0 {
		cfg.MinNoticeHard = c.MinNoticeHard
	}
	if c.MinNoticeSoft > 0 {
		cfg.MinNoticeSoft = c.MinNoticeSoft
	}
	if len(c.CriticalCodes) > 0 {
		codes := make([]availability.ConflictCode, 0, len(c.CriticalCodes))
		for _, raw := range c.CriticalCodes {
			code, err := availability.ParseConflictCode(strings.ToUpper(raw))
			if err != nil {
				return availability.Config{}, fmt.Errorf("critical codes: %w", err)
			}
			codes = append(codes, code)
		}
		cfg.CriticalCodes = codes
	}
	if c.SuggestDaysAhead > 0 {
		cfg.DaysAhead = c.SuggestDaysAhead
	}
	if c.SuggestMax > 0 {
		cfg.MaxSuggestions = c.SuggestMax
	}
	return cfg, nil
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
