package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/location-gateway/internal/models"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort      string        `validate:"required,numeric"`
	RequestTimeout  time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	StoreBackend            string `validate:"oneof=postgres memory"`
	DatabaseURL             string `validate:"required_if=StoreBackend postgres"`
	DatabaseMaxOpenConns    int    `validate:"gte=0"`
	DatabaseMaxIdleConns    int    `validate:"gte=0"`
	DatabaseConnMaxLifetime time.Duration

	CacheBackend          string        `validate:"oneof=none in_memory memcached redis"`
	CacheTTL              time.Duration `validate:"gt=0"`
	MemcachedAddrs        string        `validate:"required_if=CacheBackend memcached"`
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisAddr             string `validate:"required_if=CacheBackend redis"`
	RedisPassword         string
	RedisDB               int `validate:"gte=0"`

	WeatherTTL  time.Duration `validate:"gt=0"`
	EventsTTL   time.Duration `validate:"gt=0"`
	ListingsTTL time.Duration `validate:"gt=0"`
	MediaTTL    time.Duration `validate:"gt=0"`

	GeocodeURL      string        `validate:"required,url"`
	WeatherURL      string        `validate:"required,url"`
	EventsURL       string        `validate:"required,url"`
	ListingsURL     string        `validate:"required,url"`
	MediaURL        string        `validate:"required,url"`
	ProviderTimeout time.Duration `validate:"gt=0"`
	MaxRecords      int           `validate:"gte=1,lte=100"`

	GeocodeAPIKey  string
	WeatherAPIKey  string
	EventsAPIKey   string
	ListingsAPIKey string
	MediaAPIKey    string

	RetryAttempts           int `validate:"gte=1"`
	RetryBaseDelay          time.Duration
	RetryMaxDelay           time.Duration `validate:"gtefield=RetryBaseDelay"`
	RateLimitRPS            int           `validate:"gt=0"`
	RateLimitBurst          int           `validate:"gt=0"`
	BreakerFailureThreshold uint32        `validate:"gte=1"`
	BreakerTimeout          time.Duration `validate:"gt=0"`

	HealthWindow       time.Duration `validate:"gt=0"`
	HealthErrorRatePct int           `validate:"gte=1,lte=100"`
	TrackedQueries     []string
	WarmingInterval    time.Duration
	CORSAllowedOrigins []string
}

// TTL returns the freshness window for category.
func (c *Config) TTL(category models.Category) time.Duration {
	switch category {
	case models.CategoryWeather:
		return c.WeatherTTL
	case models.CategoryEvents:
		return c.EventsTTL
	case models.CategoryListings:
		return c.ListingsTTL
	case models.CategoryMedia:
		return c.MediaTTL
	}
	return defaultCategoryTTL
}

const defaultCategoryTTL = 15 * time.Second

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`

	Database struct {
		URL             string `yaml:"url"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	TTL struct {
		Weather  string `yaml:"weather"`
		Events   string `yaml:"events"`
		Listings string `yaml:"listings"`
		Media    string `yaml:"media"`
	} `yaml:"ttl"`

	Providers struct {
		GeocodeURL  string `yaml:"geocode_url"`
		WeatherURL  string `yaml:"weather_url"`
		EventsURL   string `yaml:"events_url"`
		ListingsURL string `yaml:"listings_url"`
		MediaURL    string `yaml:"media_url"`
		Timeout     string `yaml:"timeout"`
		MaxRecords  int    `yaml:"max_records"`
	} `yaml:"providers"`

	Reliability struct {
		RetryMaxAttempts        int    `yaml:"retry_max_attempts"`
		RetryBaseDelay          string `yaml:"retry_base_delay"`
		RetryMaxDelay           string `yaml:"retry_max_delay"`
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
		BreakerFailureThreshold uint32 `yaml:"breaker_failure_threshold"`
		BreakerTimeout          string `yaml:"breaker_timeout"`
	} `yaml:"reliability"`

	Health struct {
		Window       string `yaml:"window"`
		ErrorRatePct int    `yaml:"error_rate_pct"`
	} `yaml:"health"`

	Warming struct {
		TrackedQueries []string `yaml:"tracked_queries"`
		Interval       string   `yaml:"interval"`
	} `yaml:"warming"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

type secretsFile struct {
	GeocodeAPIKey  string `yaml:"geocode_api_key"`
	WeatherAPIKey  string `yaml:"weather_api_key"`
	EventsAPIKey   string `yaml:"events_api_key"`
	ListingsAPIKey string `yaml:"listings_api_key"`
	MediaAPIKey    string `yaml:"media_api_key"`
	RedisPassword  string `yaml:"redis_password"`
}

var validate = validator.New()

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Env vars override file values. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	// .env never overrides variables already set in the process environment.
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := fromFile(&fc)
	cfg.GeocodeAPIKey = envOr("GEOCODE_API_KEY", sec.GeocodeAPIKey)
	cfg.WeatherAPIKey = envOr("WEATHER_API_KEY", sec.WeatherAPIKey)
	cfg.EventsAPIKey = envOr("EVENTS_API_KEY", sec.EventsAPIKey)
	cfg.ListingsAPIKey = envOr("LISTINGS_API_KEY", sec.ListingsAPIKey)
	cfg.MediaAPIKey = envOr("MEDIA_API_KEY", sec.MediaAPIKey)
	cfg.RedisPassword = envOr("REDIS_PASSWORD", sec.RedisPassword)

	if err := requireSecrets(cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromFile(fc *fileConfig) *Config {
	cfg := &Config{}

	cfg.ServerPort = envOr("PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.StoreBackend = lowerTrim(envOr("STORE_BACKEND", fc.Store.Backend))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "postgres"
	}
	cfg.DatabaseURL = envOr("DATABASE_URL", fc.Database.URL)
	cfg.DatabaseMaxOpenConns = fc.Database.MaxOpenConns
	if cfg.DatabaseMaxOpenConns <= 0 {
		cfg.DatabaseMaxOpenConns = 10
	}
	cfg.DatabaseMaxIdleConns = fc.Database.MaxIdleConns
	if cfg.DatabaseMaxIdleConns <= 0 {
		cfg.DatabaseMaxIdleConns = 5
	}
	cfg.DatabaseConnMaxLifetime = parseDuration(fc.Database.ConnMaxLifetime, 30*time.Minute)

	cfg.CacheBackend = lowerTrim(envOr("CACHE_BACKEND", fc.Cache.Backend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "none"
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.MemcachedAddrs = strings.TrimSpace(envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisAddr = strings.TrimSpace(envOr("REDIS_ADDR", fc.Cache.Redis.Addr))
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "127.0.0.1:6379"
	}
	cfg.RedisDB = fc.Cache.Redis.DB

	cfg.WeatherTTL = parseDuration(fc.TTL.Weather, defaultCategoryTTL)
	cfg.EventsTTL = parseDuration(fc.TTL.Events, defaultCategoryTTL)
	cfg.ListingsTTL = parseDuration(fc.TTL.Listings, defaultCategoryTTL)
	cfg.MediaTTL = parseDuration(fc.TTL.Media, defaultCategoryTTL)

	cfg.GeocodeURL = orDefault(fc.Providers.GeocodeURL, "https://maps.googleapis.com/maps/api/geocode/json")
	cfg.WeatherURL = orDefault(fc.Providers.WeatherURL, "https://api.darksky.net/forecast")
	cfg.EventsURL = orDefault(fc.Providers.EventsURL, "https://www.eventbriteapi.com/v3/events/search")
	cfg.ListingsURL = orDefault(fc.Providers.ListingsURL, "https://api.yelp.com/v3/businesses/search")
	cfg.MediaURL = orDefault(fc.Providers.MediaURL, "https://api.themoviedb.org/3/search/movie")
	cfg.ProviderTimeout = parseDurationOrZero(fc.Providers.Timeout, 2*time.Second)
	cfg.MaxRecords = fc.Providers.MaxRecords
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = 20
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.BreakerFailureThreshold = fc.Reliability.BreakerFailureThreshold
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.BreakerTimeout, 30*time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, time.Minute)
	cfg.HealthErrorRatePct = fc.Health.ErrorRatePct
	if cfg.HealthErrorRatePct <= 0 {
		cfg.HealthErrorRatePct = 50
	}

	cfg.TrackedQueries = fc.Warming.TrackedQueries
	cfg.WarmingInterval = parseDurationOrZero(fc.Warming.Interval, 0)
	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	return cfg
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// requireSecrets names every missing API key in one error.
func requireSecrets(cfg *Config) error {
	var missing []string
	for _, s := range []struct {
		env, value string
	}{
		{"GEOCODE_API_KEY", cfg.GeocodeAPIKey},
		{"WEATHER_API_KEY", cfg.WeatherAPIKey},
		{"EVENTS_API_KEY", cfg.EventsAPIKey},
		{"LISTINGS_API_KEY", cfg.ListingsAPIKey},
		{"MEDIA_API_KEY", cfg.MediaAPIKey},
	} {
		if s.value == "" {
			missing = append(missing, s.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required (set env or config/secrets.yaml)", strings.Join(missing, ", "))
	}
	return nil
}

// validateConfig runs struct validation after adjusting RequestTimeout so a
// single provider attempt always fits inside one inbound request.
func validateConfig(cfg *Config) error {
	if cfg.ProviderTimeout <= 0 {
		return fmt.Errorf("providers.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.ProviderTimeout {
		cfg.RequestTimeout = cfg.ProviderTimeout + time.Second
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
