// Package database opens gorm connections for sqlite and postgres with
// retries, pool settings and logging through the glowbook logger.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/glowbook/logger"
	"github.com/kbukum/glowbook/resilience"
)

// DB wraps a gorm connection.
type DB struct {
	Gorm *gorm.DB
	cfg  Config
	log  *logger.Logger
}

// Open connects using cfg, retrying failed connects, and auto-migrates models.
func Open(ctx context.Context, cfg Config, log *logger.Logger, models ...any) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithComponent("database")

	gormCfg := &gorm.Config{
		Logger:         &gormLogger{log: log, level: parseLevel(cfg.LogLevel), slow: cfg.SlowQuery},
		TranslateError: true,
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.MaxRetries,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		RetryIf:        func(err error) bool { return ctx.Err() == nil },
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Warn("database connect failed, retrying", logger.Fields("attempt", attempt, "wait", wait.String(), logger.FieldError, err))
		},
	}
	gdb, err := resilience.Retry(ctx, retry, func(ctx context.Context) (*gorm.DB, error) {
		gdb, err := gorm.Open(dialector(cfg), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		return gdb, nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s database: %w", cfg.Driver, err)
	}

	if len(models) > 0 {
		if err := gdb.WithContext(ctx).AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}
	log.Info("database connected", logger.Fields("driver", cfg.Driver))
	return &DB{Gorm: gdb, cfg: cfg, log: log}, nil
}

func dialector(cfg Config) gorm.Dialector {
	if cfg.Driver == DriverPostgres {
		return postgres.Open(cfg.DSN)
	}
	return sqlite.Open(cfg.DSN)
}

// Driver returns the configured driver name.
func (d *DB) Driver() string { return d.cfg.Driver }

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn in a transaction, rolling back when it returns an error.
func (d *DB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.Gorm.WithContext(ctx).Transaction(fn)
}

func parseLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// gormLogger routes gorm output through the glowbook logger.
type gormLogger struct {
	log   *logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLogger{log: l.log, level: level, slow: l.slow}
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && err != gorm.ErrRecordNotFound && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.log.Error("query failed", logger.Fields("sql", sql, "rows", rows, logger.FieldDuration, elapsed.Milliseconds(), logger.FieldError, err))
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow query", logger.Fields("sql", sql, "rows", rows, logger.FieldDuration, elapsed.Milliseconds()))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("query", logger.Fields("sql", sql, "rows", rows, logger.FieldDuration, elapsed.Milliseconds()))
	}
}
