package database

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"matchmarket-service/internal/config"
	"matchmarket-service/internal/models"
	"matchmarket-service/internal/store"
)

const defaultSQLiteFile = "matchmarket.db"

// DSN builds the connection string for the configured driver. DATABASE_URL
// wins over the split DB_* fields.
func DSN(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	switch cfg.DBDriver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
	case "sqlite":
		file := cfg.DBName
		if file == "" {
			file = defaultSQLiteFile
		}
		if strings.Contains(file, "?") {
			return file
		}
		return file + "?_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(DSN(cfg))
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  DSN(cfg),
			PreferSimpleProtocol: true,
		})
	case "sqlite":
		dialector = sqlite.Open(DSN(cfg))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == "sqlite" {
		// SQLite has a single writer; one connection keeps transactions serial.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	slog.Info("Database connection established", "driver", cfg.DBDriver)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("Database migration completed")
	return nil
}

// OpenStore connects, optionally migrates, and returns the persistence
// gateway for cfg.
func OpenStore(cfg *config.Config, migrate bool) (store.Store, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return store.NewGormStore(db), nil
}
