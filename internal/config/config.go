package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"matchmarket-service/internal/scheduler"
	"matchmarket-service/internal/services"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the match market processes.
// The values are read from environment variables (and .env files).
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	GRPCPort   string `mapstructure:"GRPC_PORT"`

	DBDriver    string `mapstructure:"DB_DRIVER"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	PushServiceURL string `mapstructure:"PUSH_SERVICE_URL"`
	Notifier       string `mapstructure:"NOTIFIER"`
	JWTSecret      string `mapstructure:"JWT_SECRET"`

	BusinessTimezone    string        `mapstructure:"BUSINESS_TIMEZONE"`
	PaymentOfferTimeout time.Duration `mapstructure:"PAYMENT_OFFER_TIMEOUT"`
	CommissionRate      float64       `mapstructure:"COMMISSION_RATE"`
	AdRevenueShare      float64       `mapstructure:"AD_REVENUE_SHARE"`
	CancelWindow        time.Duration `mapstructure:"CANCEL_WINDOW"`
	ReminderDelay       time.Duration `mapstructure:"REMINDER_DELAY"`
	ReminderWindow      time.Duration `mapstructure:"REMINDER_WINDOW"`

	MonitorSchedule    string `mapstructure:"MONITOR_SCHEDULE"`
	OfferSweepSchedule string `mapstructure:"OFFER_SWEEP_SCHEDULE"`
	ReconcileSchedule  string `mapstructure:"RECONCILE_SCHEDULE"`
}

var keys = []string{
	"SERVER_PORT", "GRPC_PORT",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DATABASE_URL",
	"REDIS_URL", "RABBITMQ_URL", "PUSH_SERVICE_URL", "NOTIFIER", "JWT_SECRET",
	"BUSINESS_TIMEZONE", "PAYMENT_OFFER_TIMEOUT", "COMMISSION_RATE", "AD_REVENUE_SHARE",
	"CANCEL_WINDOW", "REMINDER_DELAY", "REMINDER_WINDOW",
	"MONITOR_SCHEDULE", "OFFER_SWEEP_SCHEDULE", "RECONCILE_SCHEDULE",
}

// LoadEnv reads .env from the working directory, falling back to the parent.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
	log.Println("No .env file found, using system environment variables")
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GRPC_PORT", "50051")
	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("NOTIFIER", "log")
	viper.SetDefault("BUSINESS_TIMEZONE", "UTC")
	viper.SetDefault("PAYMENT_OFFER_TIMEOUT", "10m")
	viper.SetDefault("COMMISSION_RATE", 0.15)
	viper.SetDefault("AD_REVENUE_SHARE", 0.5)
	viper.SetDefault("CANCEL_WINDOW", "1h")
	viper.SetDefault("REMINDER_DELAY", "1h")
	viper.SetDefault("REMINDER_WINDOW", "2h")
	viper.SetDefault("MONITOR_SCHEDULE", "@every 60s")
	viper.SetDefault("OFFER_SWEEP_SCHEDULE", "@every 1m")
	viper.SetDefault("RECONCILE_SCHEDULE", "30 0 * * *")

	viper.AutomaticEnv()
	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	config.DBDriver = strings.ToLower(strings.TrimSpace(config.DBDriver))
	config.Notifier = strings.ToLower(strings.TrimSpace(config.Notifier))

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql, postgres or sqlite, got %q", c.DBDriver)
	}
	if c.PaymentOfferTimeout <= 0 {
		return fmt.Errorf("PAYMENT_OFFER_TIMEOUT must be positive, got %s", c.PaymentOfferTimeout)
	}
	if c.CommissionRate < 0 || c.CommissionRate > 1 {
		return fmt.Errorf("COMMISSION_RATE must be between 0 and 1, got %v", c.CommissionRate)
	}
	if c.AdRevenueShare < 0 || c.AdRevenueShare > 1 {
		return fmt.Errorf("AD_REVENUE_SHARE must be between 0 and 1, got %v", c.AdRevenueShare)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return nil
}

// Location returns the business time zone. It falls back to UTC when the
// zone cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Options translates the business settings for the services package.
func (c *Config) Options() services.Options {
	return services.Options{
		OfferTimeout:   c.PaymentOfferTimeout,
		CommissionRate: decimal.NewFromFloat(c.CommissionRate),
		AdRevenueShare: decimal.NewFromFloat(c.AdRevenueShare),
		CancelWindow:   c.CancelWindow,
		ReminderDelay:  c.ReminderDelay,
		ReminderWindow: c.ReminderWindow,
		Location:       c.Location(),
	}
}

func (c *Config) Schedules() scheduler.Schedules {
	return scheduler.Schedules{
		Monitor:    c.MonitorSchedule,
		OfferSweep: c.OfferSweepSchedule,
		Reconcile:  c.ReconcileSchedule,
	}
}
