package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"retail-be/internal/config"
	"retail-be/internal/logger"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

func buildDSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, sslMode,
	)
}

// NewDatabase opens a Postgres pool sized from cfg and verifies it answers.
func NewDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return open(ctx, "postgres", buildDSN(cfg), cfg.DBMaxOpenConns)
}

func open(ctx context.Context, driver, dsn string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

// InitDB is NewDatabase for entrypoints: it exits the process on failure.
func InitDB(cfg *config.Config) *sql.DB {
	log := logger.L().With(
		zap.String("host", cfg.DBHost),
		zap.String("db", cfg.DBName),
	)

	db, err := NewDatabase(context.Background(), cfg)
	if err != nil {
		log.Fatal("database unavailable", zap.Error(err))
	}

	log.Info("database connection established", zap.Int("max_open_conns", cfg.DBMaxOpenConns))
	return db
}
