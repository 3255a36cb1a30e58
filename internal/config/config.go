package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string
	AppEnv     string

	// Pool size; the batch recompute holds one connection per worker.
	DBMaxOpenConns int

	// Batch recompute tuning
	RecalcConcurrency int
	RecalcRate        float64
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:            os.Getenv("DB_HOST"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBName:            os.Getenv("DB_NAME"),
		DBPort:            os.Getenv("DB_PORT"),
		DBSSLMode:         envString("DB_SSLMODE", "disable"),
		AppEnv:            os.Getenv("APP_ENV"),
		RecalcConcurrency: envInt("RECALC_CONCURRENCY", 4),
		RecalcRate:        envFloat("RECALC_RATE", 50),
	}

	cfg.DBMaxOpenConns = envInt("DB_MAX_OPEN_CONNS", cfg.RecalcConcurrency+2)

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
