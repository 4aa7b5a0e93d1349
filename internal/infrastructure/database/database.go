package database

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"fanloyalty/internal/config"
	"fanloyalty/internal/model"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects to the configured store. Unique-key violations are translated
// to gorm.ErrDuplicatedKey for every driver.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL, "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Database,
		)
		dialector = gormmysql.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.Path + "?_busy_timeout=5000&_txlock=immediate")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(cfg.LogLevel)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// one writer; transactions queue on the pool instead of failing with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// Migrate creates or updates every table the ledger owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Club{},
		&model.Program{},
		&model.Membership{},
		&model.Activity{},
		&model.ActivityCompletion{},
		&model.ManualClaim{},
		&model.Reward{},
		&model.RewardCode{},
		&model.RewardRedemption{},
		&model.Tier{},
		&model.TierBenefit{},
		&model.PointTransaction{},
		&model.OutboxMessage{},
	)
}

// InitDB opens and migrates the store, exiting the process on failure.
func InitDB(cfg *config.DatabaseConfig) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		slog.Error("connect database failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := Migrate(db); err != nil {
		slog.Error("migrate database failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("database connected", slog.String("driver", cfg.Driver))
	return db
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
