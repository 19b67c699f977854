package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/niaga-platform/service-seller-analytics/internal/analytics"
	"github.com/niaga-platform/service-seller-analytics/internal/logger"
)

// Config holds all configuration for the seller analytics service
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         logger.Config     `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Wildberries WildberriesConfig `mapstructure:"wildberries"`
	Security    SecurityConfig    `mapstructure:"security"`
	Services    ServicesConfig    `mapstructure:"services"`
	Analytics   AnalyticsConfig   `mapstructure:"analytics"`
	Sync        SyncConfig        `mapstructure:"sync"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Name string `mapstructure:"name" validate:"required"`
	Env  string `mapstructure:"env" validate:"oneof=development staging production test"`
	Port string `mapstructure:"port" validate:"required,numeric"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// SentryConfig holds Sentry error tracking configuration
type SentryConfig struct {
	DSN         string `mapstructure:"dsn" validate:"omitempty,url"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"gte=0"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// WildberriesConfig holds Wildberries seller API settings
type WildberriesConfig struct {
	StatisticsURL  string        `mapstructure:"statistics_url" validate:"required,url"`
	AdvertURL      string        `mapstructure:"advert_url" validate:"required,url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=1,lte=10"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"` // passphrase for API key encryption at rest
}

// ServicesConfig holds URLs for other microservices
type ServicesConfig struct {
	CatalogURL string `mapstructure:"catalog_url" validate:"omitempty,url"`
}

// SyncConfig holds the background report sync schedule
type SyncConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`       // how often each seller is recomputed
	CheckInterval time.Duration `mapstructure:"check_interval"` // how often the scheduler wakes up
	Timeout       time.Duration `mapstructure:"timeout"`
	ExpiryWarning time.Duration `mapstructure:"expiry_warning"`
}

// AnalyticsConfig holds the tunable parameters of the report calculations
type AnalyticsConfig struct {
	Thresholds    analytics.Thresholds      `mapstructure:"abc"`
	Weekly        analytics.WeeklyConfig    `mapstructure:"weekly"`
	Supply        analytics.SupplyConfig    `mapstructure:"supply"`
	Promotions    analytics.PromotionConfig `mapstructure:"promotions"`
	Logistics     analytics.LogisticsRates  `mapstructure:"logistics"`
	DefaultPeriod time.Duration             `mapstructure:"default_period"`
	MaxPeriod     time.Duration             `mapstructure:"max_period"`
}

// Validate runs the calculation-specific checks.
func (a AnalyticsConfig) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"analytics.abc", a.Thresholds.Validate},
		{"analytics.weekly", a.Weekly.Validate},
		{"analytics.supply", a.Supply.Validate},
		{"analytics.promotions", a.Promotions.Validate},
		{"analytics.logistics", a.Logistics.Validate},
	}
	for _, c := range checks {
		if err := c.fn(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	if a.DefaultPeriod <= 0 || a.MaxPeriod < a.DefaultPeriod {
		return fmt.Errorf("analytics: default_period must be positive and not exceed max_period")
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("app.name", "APP_NAME")
	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("app.port", "APP_PORT")

	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")
	_ = v.BindEnv("log.output", "LOG_OUTPUT")

	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.ssl_mode", "DB_SSLMODE")

	_ = v.BindEnv("nats.url", "NATS_URL")

	// Redis
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("redis.ttl", "REDIS_CACHE_TTL")

	_ = v.BindEnv("sentry.dsn", "SENTRY_DSN")
	_ = v.BindEnv("sentry.environment", "APP_ENV")
	_ = v.BindEnv("sentry.release", "APP_VERSION")

	_ = v.BindEnv("http.allowed_origins", "ALLOWED_ORIGINS")
	_ = v.BindEnv("http.requests_per_minute", "HTTP_REQUESTS_PER_MINUTE")
	_ = v.BindEnv("http.max_upload_bytes", "HTTP_MAX_UPLOAD_BYTES")

	// Wildberries
	_ = v.BindEnv("wildberries.statistics_url", "WB_STATISTICS_URL")
	_ = v.BindEnv("wildberries.advert_url", "WB_ADVERT_URL")
	_ = v.BindEnv("wildberries.request_timeout", "WB_REQUEST_TIMEOUT")
	_ = v.BindEnv("wildberries.cache_ttl", "WB_CACHE_TTL")
	_ = v.BindEnv("wildberries.max_retries", "WB_MAX_RETRIES")

	// Security
	_ = v.BindEnv("security.encryption_key", "ANALYTICS_ENCRYPTION_KEY")

	// Services
	_ = v.BindEnv("services.catalog_url", "SERVICE_CATALOG_URL")

	// Analytics
	_ = v.BindEnv("analytics.abc.a", "ANALYTICS_ABC_A")
	_ = v.BindEnv("analytics.abc.b", "ANALYTICS_ABC_B")
	_ = v.BindEnv("analytics.weekly.tax_rate", "ANALYTICS_TAX_RATE")
	_ = v.BindEnv("analytics.weekly.cost_per_unit", "ANALYTICS_COST_PER_UNIT")
	_ = v.BindEnv("analytics.supply.history_days", "ANALYTICS_SUPPLY_HISTORY_DAYS")
	_ = v.BindEnv("analytics.supply.plan_window_days", "ANALYTICS_SUPPLY_PLAN_DAYS")
	_ = v.BindEnv("analytics.logistics.first_liter_rate", "ANALYTICS_FIRST_LITER_RATE")
	_ = v.BindEnv("analytics.logistics.per_liter_rate", "ANALYTICS_PER_LITER_RATE")
	_ = v.BindEnv("analytics.logistics.warehouse_coefficient", "ANALYTICS_WAREHOUSE_COEFFICIENT")
	_ = v.BindEnv("analytics.logistics.localization_index", "ANALYTICS_LOCALIZATION_INDEX")

	// Sync
	_ = v.BindEnv("sync.enabled", "SYNC_ENABLED")
	_ = v.BindEnv("sync.interval", "SYNC_INTERVAL")
	_ = v.BindEnv("sync.check_interval", "SYNC_CHECK_INTERVAL")
	_ = v.BindEnv("sync.timeout", "SYNC_TIMEOUT")
	_ = v.BindEnv("sync.expiry_warning", "SYNC_EXPIRY_WARNING")

	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks struct tags and the analytics parameters.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Analytics.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Sync.Enabled && (c.Sync.Interval <= 0 || c.Sync.CheckInterval <= 0) {
		return fmt.Errorf("invalid config: sync.interval and sync.check_interval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "service-seller-analytics")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8012")

	// Logging
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
	v.SetDefault("log.output", "stdout")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "seller_analytics")
	v.SetDefault("database.ssl_mode", "disable")

	// NATS
	v.SetDefault("nats.url", "nats://localhost:4222")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 15*time.Minute)

	// Sentry
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.release", "1.0.0")

	// HTTP
	v.SetDefault("http.allowed_origins", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("http.requests_per_minute", 60)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 2*time.Minute)
	v.SetDefault("http.max_upload_bytes", 20<<20)

	// Wildberries
	v.SetDefault("wildberries.statistics_url", "https://statistics-api.wildberries.ru")
	v.SetDefault("wildberries.advert_url", "https://advert-api.wildberries.ru")
	v.SetDefault("wildberries.request_timeout", 60*time.Second)
	v.SetDefault("wildberries.cache_ttl", 60*time.Second)
	v.SetDefault("wildberries.max_retries", 3)

	// Analytics
	th := analytics.DefaultThresholds()
	v.SetDefault("analytics.abc.a", th.A)
	v.SetDefault("analytics.abc.b", th.B)

	wk := analytics.DefaultWeeklyConfig()
	v.SetDefault("analytics.weekly.week_size_days", wk.WeekSizeDays)
	v.SetDefault("analytics.weekly.payment_ratio", wk.PaymentRatio)
	v.SetDefault("analytics.weekly.logistics_per_unit", wk.LogisticsPerUnit)
	v.SetDefault("analytics.weekly.storage_per_unit", wk.StoragePerUnit)
	v.SetDefault("analytics.weekly.acceptance_per_unit", wk.AcceptancePerUnit)
	v.SetDefault("analytics.weekly.ad_spend_ratio", wk.AdSpendRatio)
	v.SetDefault("analytics.weekly.tax_rate", wk.TaxRate)
	v.SetDefault("analytics.weekly.other_expenses_ratio", wk.OtherExpensesRatio)
	v.SetDefault("analytics.weekly.cost_per_unit", wk.CostPerUnit)

	sp := analytics.DefaultSupplyConfig()
	v.SetDefault("analytics.supply.history_days", sp.HistoryDays)
	v.SetDefault("analytics.supply.plan_window_days", sp.PlanWindowDays)
	v.SetDefault("analytics.supply.seasonality", sp.Seasonality)

	pr := analytics.DefaultPromotionConfig()
	v.SetDefault("analytics.promotions.prepare_multiplier", pr.PrepareMultiplier)
	v.SetDefault("analytics.promotions.liquidate_multiplier", pr.LiquidateMultiplier)
	v.SetDefault("analytics.promotions.max_turnover_days", pr.MaxTurnoverDays)

	v.SetDefault("analytics.logistics.first_liter_rate", 38.0)
	v.SetDefault("analytics.logistics.per_liter_rate", 9.5)
	v.SetDefault("analytics.logistics.warehouse_coefficient", 1.0)
	v.SetDefault("analytics.logistics.localization_index", 1.0)
	v.SetDefault("analytics.logistics.storage_rate_per_liter", analytics.DefaultStorageRatePerLiter)

	v.SetDefault("analytics.default_period", 30*24*time.Hour)
	v.SetDefault("analytics.max_period", 180*24*time.Hour)

	// Sync
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", 6*time.Hour)
	v.SetDefault("sync.check_interval", 10*time.Minute)
	v.SetDefault("sync.timeout", 5*time.Minute)
	v.SetDefault("sync.expiry_warning", 72*time.Hour)
}
