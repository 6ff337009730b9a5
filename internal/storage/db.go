package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bilgisen/newsbot/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the database named by dburl and migrates the schema.
//
// Supported forms are "sqlite://<path>" (":memory:" works) and
// "postgres://..." / "postgresql://...". SQLite gets a single open connection
// and WAL journaling, which also serialises writers.
func Open(dburl string, log zerolog.Logger) (*gorm.DB, error) {
	var dial gorm.Dialector
	isSqlite := false
	inMemory := false

	switch {
	case strings.HasPrefix(dburl, "sqlite://"):
		path := strings.TrimPrefix(dburl, "sqlite://")
		inMemory = strings.HasPrefix(path, ":memory:") || strings.Contains(path, "mode=memory")
		if !inMemory && !strings.HasPrefix(path, "file:") {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dial = sqlite.Open(path)
		isSqlite = true
	case strings.HasPrefix(dburl, "postgres://"), strings.HasPrefix(dburl, "postgresql://"):
		dial = postgres.Open(dburl)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", schemeOf(dburl))
	}

	level := gormlogger.Silent
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		level = gormlogger.Info
	}
	dbLog := log.With().Str("component", "gorm").Logger()

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger: gormlogger.New(&dbLog, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}

	if isSqlite {
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		if !inMemory {
			sqldb.SetConnMaxIdleTime(time.Hour)
			if err := db.Exec("PRAGMA journal_mode=WAL;").Error; err != nil {
				return nil, fmt.Errorf("set journal mode: %w", err)
			}
			if err := db.Exec("PRAGMA synchronous=normal;").Error; err != nil {
				return nil, fmt.Errorf("set synchronous: %w", err)
			}
		}
	} else {
		sqldb.SetMaxOpenConns(10)
		sqldb.SetMaxIdleConns(5)
		sqldb.SetConnMaxIdleTime(time.Hour)
	}

	if err := db.AutoMigrate(&models.Post{}, &models.LedgerEntry{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqldb, err := db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

// schemeOf avoids echoing credentials from a malformed url.
func schemeOf(dburl string) string {
	if i := strings.Index(dburl, "://"); i >= 0 {
		return dburl[:i]
	}
	return ""
}

// Ping checks that the database answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqldb, err := db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}
