package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/glowbook/errors"
	"github.com/kbukum/glowbook/logger"
)

type note struct {
	ID   string `gorm:"primaryKey"`
	Body string
}

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "test.db")}, logger.Nop(), &note{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDriverFor(t *testing.T) {
	tests := map[string]string{
		"glowbook.db":                       DriverSQLite,
		"file::memory:?cache=shared":        DriverSQLite,
		"postgres://u:p@localhost/glowbook": DriverPostgres,
		"host=localhost user=u dbname=glow": DriverPostgres,
	}
	for dsn, want := range tests {
		if got := DriverFor(dsn); got != want {
			t.Errorf("DriverFor(%q) = %s, want %s", dsn, got, want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("empty dsn should fail")
	}
	cfg = Config{DSN: "x.db"}
	cfg.ApplyDefaults()
	if cfg.MaxOpenConns != 1 {
		t.Errorf("sqlite max open conns = %d", cfg.MaxOpenConns)
	}
}

func TestOpenMigrateAndTransaction(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	err := db.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&note{ID: "1", Body: "a"}).Error; err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}
	var count int64
	db.Gorm.Model(&note{}).Count(&count)
	if count != 0 {
		t.Errorf("rolled back transaction left %d rows", count)
	}
}

func TestFromGorm(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	var n note
	err := FromGorm(db.Gorm.WithContext(ctx).First(&n, "id = ?", "missing").Error, "note", "missing")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("missing row = %v", err)
	}

	if err := db.Gorm.Create(&note{ID: "dup"}).Error; err != nil {
		t.Fatal(err)
	}
	err = FromGorm(db.Gorm.Create(&note{ID: "dup"}).Error, "note", "dup")
	if !apperrors.HasCode(err, apperrors.ErrCodeAlreadyExists) {
		t.Errorf("duplicate row = %v", err)
	}
	if FromGorm(nil, "note", "") != nil {
		t.Error("nil must stay nil")
	}
}
