// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the DrinksHarbour API
type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Mongo       MongoConfig
	Kafka       KafkaConfig
	JWT         JWTConfig
	Security    SecurityConfig
	External    ExternalConfig
	Upload      UploadConfig
	Marketplace MarketplaceConfig
	Jobs        JobsConfig
	Logging     LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name           string
	Version        string
	Environment    string
	Debug          bool
	FrontendURL    string
	CompanyName    string
	CompanyAddress string
	CompanyPhone   string
	CompanyEmail   string
	CompanyWebsite string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	AutoMigrate  bool
	Seed         bool
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MongoConfig contains the activity store connection. An empty URI disables it.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// KafkaConfig contains event publishing configuration. No brokers means log-only.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
	ClientID    string
}

// JWTConfig contains JWT token configuration
type JWTConfig struct {
	Secret             string
	Issuer             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	BcryptCost         int
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	TrustedProxies     []string
	IdempotencyTTL     time.Duration
}

// ExternalConfig contains external service configurations
type ExternalConfig struct {
	Stripe     StripeConfig
	Email      EmailConfig
	Cloudinary CloudinaryConfig
}

// StripeConfig contains Stripe payment configuration
type StripeConfig struct {
	SecretKey          string
	WebhookSecret      string
	Currency           string
	BreakerTimeout     time.Duration
	BreakerMaxRequests uint32
}

// EmailConfig contains SMTP configuration
type EmailConfig struct {
	Enabled   bool
	FromEmail string
	FromName  string
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	AdminTo   []string
}

// CloudinaryConfig contains CDN credentials
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// UploadConfig contains file upload configuration
type UploadConfig struct {
	Provider      string
	LocalPath     string
	PublicBaseURL string
	MaxFileSize   int64
	MaxFiles      int
	AllowedTypes  []string
}

// MarketplaceConfig contains pricing and revenue split rules
type MarketplaceConfig struct {
	Currency              string
	DefaultCommissionRate float64
	DefaultMarkupRate     float64
	CartTTL               time.Duration
	CompareLimit          int
	PendingOrderTTL       time.Duration
	ShippingFlatFee       int64
	FreeShippingThreshold int64
	TaxRate               float64
	LegalDrinkingAge      int
	SearchCacheTTL        time.Duration
}

// JobsConfig contains scheduled job intervals
type JobsConfig struct {
	Enabled                bool
	FlashSaleSweepInterval time.Duration
	PendingOrderInterval   time.Duration
	CouponExpiryInterval   time.Duration
	PopularityInterval     time.Duration
	RevenueReportInterval  time.Duration
	RevenueReportLookback  time.Duration
	CartPurgeInterval      time.Duration
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:           getEnv("APP_NAME", "DrinksHarbour API"),
			Version:        getEnv("APP_VERSION", "1.0.0"),
			Environment:    getEnv("APP_ENV", "development"),
			Debug:          getEnvAsBool("APP_DEBUG", true),
			FrontendURL:    getEnv("FRONTEND_URL", "http://localhost:3000"),
			CompanyName:    getEnv("COMPANY_NAME", "DrinksHarbour"),
			CompanyAddress: getEnv("COMPANY_ADDRESS", ""),
			CompanyPhone:   getEnv("COMPANY_PHONE", ""),
			CompanyEmail:   getEnv("COMPANY_EMAIL", "support@drinksharbour.com"),
			CompanyWebsite: getEnv("COMPANY_WEBSITE", "https://drinksharbour.com"),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 20*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "drinksharbour"),
			User:         getEnv("DB_USER", "drinksharbour"),
			Password:     getEnv("DB_PASSWORD", "drinksharbour"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
			Seed:         getEnvAsBool("DB_SEED", false),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGO_URI", ""),
			Database:       getEnv("MONGO_DATABASE", "drinksharbour_activity"),
			ConnectTimeout: getEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     getEnvAsSlice("KAFKA_BROKERS", []string{}),
			TopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", "drinksharbour"),
			ClientID:    getEnv("KAFKA_CLIENT_ID", "drinksharbour-api"),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "drinksharbour-development-secret-change-me"),
			Issuer:             getEnv("JWT_ISSUER", "drinksharbour-api"),
			AccessTokenExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),
			RefreshTokenExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRE", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			BcryptCost:         getEnvAsInt("BCRYPT_COST", 12),
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:3001"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Session-ID"}),
			TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
			IdempotencyTTL:     getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		External: ExternalConfig{
			Stripe: StripeConfig{
				SecretKey:          getEnv("STRIPE_SECRET_KEY", ""),
				WebhookSecret:      getEnv("STRIPE_WEBHOOK_SECRET", ""),
				Currency:           strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
				BreakerTimeout:     getEnvAsDuration("PAYMENT_BREAKER_TIMEOUT", 30*time.Second),
				BreakerMaxRequests: uint32(getEnvAsInt("PAYMENT_BREAKER_MAX_REQUESTS", 1)),
			},
			Email: EmailConfig{
				Enabled:   getEnvAsBool("EMAIL_ENABLED", false),
				FromEmail: getEnv("FROM_EMAIL", "noreply@drinksharbour.com"),
				FromName:  getEnv("FROM_NAME", "DrinksHarbour"),
				SMTPHost:  getEnv("SMTP_HOST", ""),
				SMTPPort:  getEnvAsInt("SMTP_PORT", 587),
				SMTPUser:  getEnv("SMTP_USER", ""),
				SMTPPass:  getEnv("SMTP_PASS", ""),
				AdminTo:   getEnvAsSlice("ADMIN_REPORT_EMAILS", []string{}),
			},
			Cloudinary: CloudinaryConfig{
				CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
				APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
				APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
				Folder:    getEnv("CLOUDINARY_FOLDER", "drinksharbour"),
			},
		},
		Upload: UploadConfig{
			Provider:      getEnv("STORAGE_PROVIDER", "local"),
			LocalPath:     getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
			MaxFileSize:   getEnvAsInt64("UPLOAD_MAX_SIZE", 5*1024*1024),
			MaxFiles:      getEnvAsInt("UPLOAD_MAX_FILES", 10),
			AllowedTypes:  getEnvAsSlice("UPLOAD_ALLOWED_TYPES", []string{"image/jpeg", "image/png", "image/webp", "image/gif", "image/avif"}),
		},
		Marketplace: MarketplaceConfig{
			Currency:              strings.ToUpper(getEnv("CURRENCY", "USD")),
			DefaultCommissionRate: getEnvAsFloat("DEFAULT_COMMISSION_RATE", 0.15),
			DefaultMarkupRate:     getEnvAsFloat("DEFAULT_MARKUP_RATE", 0.20),
			CartTTL:               getEnvAsDuration("CART_TTL", 7*24*time.Hour),
			CompareLimit:          getEnvAsInt("COMPARE_LIMIT", 4),
			PendingOrderTTL:       getEnvAsDuration("PENDING_ORDER_TTL", 30*time.Minute),
			ShippingFlatFee:       getEnvAsInt64("SHIPPING_FLAT_FEE", 999),
			FreeShippingThreshold: getEnvAsInt64("FREE_SHIPPING_THRESHOLD", 10000),
			TaxRate:               getEnvAsFloat("TAX_RATE", 0.08),
			LegalDrinkingAge:      getEnvAsInt("LEGAL_DRINKING_AGE", 21),
			SearchCacheTTL:        getEnvAsDuration("SEARCH_CACHE_TTL", 60*time.Second),
		},
		Jobs: JobsConfig{
			Enabled:                getEnvAsBool("JOBS_ENABLED", true),
			FlashSaleSweepInterval: getEnvAsDuration("JOB_FLASH_SALE_SWEEP", time.Minute),
			PendingOrderInterval:   getEnvAsDuration("JOB_PENDING_ORDERS", 5*time.Minute),
			CouponExpiryInterval:   getEnvAsDuration("JOB_COUPON_EXPIRY", time.Hour),
			PopularityInterval:     getEnvAsDuration("JOB_POPULARITY", time.Hour),
			RevenueReportInterval:  getEnvAsDuration("JOB_REVENUE_REPORT", 24*time.Hour),
			RevenueReportLookback:  getEnvAsDuration("JOB_REVENUE_LOOKBACK", 24*time.Hour),
			CartPurgeInterval:      getEnvAsDuration("JOB_CART_PURGE", 6*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate JWT secret
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long")
	}

	// Validate database configuration
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	// Validate Redis configuration
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	// Validate server port
	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	// Validate marketplace rates
	if c.Marketplace.DefaultCommissionRate < 0 || c.Marketplace.DefaultCommissionRate > 1 {
		return fmt.Errorf("DEFAULT_COMMISSION_RATE must be between 0 and 1")
	}
	if c.Marketplace.DefaultMarkupRate < 0 || c.Marketplace.DefaultMarkupRate > 1 {
		return fmt.Errorf("DEFAULT_MARKUP_RATE must be between 0 and 1")
	}
	if c.Marketplace.TaxRate < 0 || c.Marketplace.TaxRate > 1 {
		return fmt.Errorf("TAX_RATE must be between 0 and 1")
	}
	if c.Marketplace.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive")
	}

	// Validate uploads
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_SIZE must be positive")
	}
	if c.Upload.Provider == "cloudinary" {
		cld := c.External.Cloudinary
		if cld.CloudName == "" || cld.APIKey == "" || cld.APISecret == "" {
			return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required for the cloudinary provider")
		}
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Topic returns the fully qualified Kafka topic name for an event
func (c *Config) Topic(name string) string {
	if c.Kafka.TopicPrefix == "" {
		return name
	}
	return c.Kafka.TopicPrefix + "." + name
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}
