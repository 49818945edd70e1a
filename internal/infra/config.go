package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string // empty selects the in-memory event log

	OwnerAddress       string
	AgentAddress       string
	IncentiveRecipient string
	ReceiptUnitSize    uint64

	LedgerURL  string // keeper: base URL of the ledger API
	WebhookURL string // optional notification endpoint

	ReconcileInterval time.Duration
	BackfillFrom      uint64 // explicit starting height; 0 means checkpoint/recent window
	BackfillWindow    uint64 // recent-window size; 0 uses the indexer default

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		OwnerAddress:       os.Getenv("OWNER_ADDRESS"),
		AgentAddress:       getEnv("AGENT_ADDRESS", "keeper"),
		IncentiveRecipient: os.Getenv("INCENTIVE_RECIPIENT"),
		ReceiptUnitSize:    uint64(getEnvInt("RECEIPT_UNIT_SIZE", 1)),
		LedgerURL:          getEnv("LEDGER_URL", "http://localhost:8080"),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		ReconcileInterval:  time.Second * time.Duration(getEnvInt("RECONCILE_INTERVAL_SECONDS", 30)),
		BackfillFrom:       uint64(getEnvInt("BACKFILL_FROM", 0)),
		BackfillWindow:     uint64(getEnvInt("BACKFILL_WINDOW", 0)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.OwnerAddress == "" {
		return nil, fmt.Errorf("OWNER_ADDRESS is required")
	}
	if cfg.IncentiveRecipient == "" {
		cfg.IncentiveRecipient = cfg.OwnerAddress
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
