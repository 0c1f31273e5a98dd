package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	resetEnv(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "log", cfg.Notifier)
	assert.Equal(t, 10*time.Minute, cfg.PaymentOfferTimeout)
	assert.Equal(t, "@every 60s", cfg.MonitorSchedule)
	assert.Equal(t, "30 0 * * *", cfg.ReconcileSchedule)

	opts := cfg.Options()
	assert.Equal(t, "0.15", opts.CommissionRate.String())
	assert.Equal(t, "0.5", opts.AdRevenueShare.String())
	assert.Equal(t, time.Hour, opts.CancelWindow)
	assert.Equal(t, 2*time.Hour, opts.ReminderWindow)
	assert.Equal(t, time.UTC, opts.Location)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	resetEnv(t)
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_OFFER_TIMEOUT", "15m")
	t.Setenv("COMMISSION_RATE", "0.2")
	t.Setenv("BUSINESS_TIMEZONE", "Asia/Seoul")
	t.Setenv("NOTIFIER", "AMQP")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "amqp", cfg.Notifier)
	assert.Equal(t, 15*time.Minute, cfg.PaymentOfferTimeout)
	assert.Equal(t, "0.2", cfg.Options().CommissionRate.String())
	assert.Equal(t, "Asia/Seoul", cfg.Location().String())
	assert.Equal(t, "@every 1m", cfg.Schedules().OfferSweep)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing jwt secret":   {"DB_DRIVER": "mysql"},
		"unknown driver":       {"DB_DRIVER": "memory", "JWT_SECRET": "s"},
		"non positive timeout": {"JWT_SECRET": "s", "PAYMENT_OFFER_TIMEOUT": "0s"},
		"rate above one":       {"JWT_SECRET": "s", "COMMISSION_RATE": "1.5"},
		"negative ad share":    {"JWT_SECRET": "s", "AD_REVENUE_SHARE": "-0.1"},
		"bad timezone":         {"JWT_SECRET": "s", "BUSINESS_TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			resetEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestZeroRatesAreKept(t *testing.T) {
	resetEnv(t)
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("COMMISSION_RATE", "0")
	t.Setenv("AD_REVENUE_SHARE", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)

	opts := cfg.Options()
	assert.True(t, opts.CommissionRate.IsZero())
	assert.True(t, opts.AdRevenueShare.IsZero())
}
