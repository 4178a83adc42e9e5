// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment
// variables (optionally seeded from a local .env secrets file).
type Config struct {
	EncryptionKey    string
	PlaidClientID    string
	PlaidSecret      string
	PlaidEnvironment string
	CountryCodes     []string
	UserID           string
	SyncInterval     time.Duration
	SyncMonths       int
	ListenAddr       string
	DBPath           string
}

// HasProviderCredentials returns true when the aggregator API credentials
// are configured. Used by the composition root to decide whether the sync
// loop can run at startup.
func (c *Config) HasProviderCredentials() bool {
	return c.PlaidClientID != "" && c.PlaidSecret != ""
}

// Load reads configuration and returns a validated Config. A .env file in
// the working directory is loaded first when present, so provider secrets
// and the encryption key can live outside the process environment.
//
// LEDGERLINK_ENCRYPTION_KEY must be a base64-encoded 256-bit key when set;
// without it the vault rejects credential operations but the app still
// starts. Optional variables with defaults: LEDGERLINK_PLAID_ENV (sandbox),
// LEDGERLINK_COUNTRY_CODES (US), LEDGERLINK_USER_ID (default),
// LEDGERLINK_SYNC_INTERVAL (6h), LEDGERLINK_SYNC_MONTHS (6),
// LEDGERLINK_LISTEN_ADDR (127.0.0.1:8080), LEDGERLINK_DB_PATH
// (ledgerlink.db).
func Load() (*Config, error) {
	// Best effort: absence of a .env file is the normal case.
	_ = godotenv.Load()

	key := os.Getenv("LEDGERLINK_ENCRYPTION_KEY")
	if key != "" {
		raw, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("LEDGERLINK_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("LEDGERLINK_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(raw))
		}
	}

	env := "sandbox"
	if v, ok := os.LookupEnv("LEDGERLINK_PLAID_ENV"); ok {
		switch v {
		case "sandbox", "development", "production":
			env = v
		default:
			return nil, fmt.Errorf("LEDGERLINK_PLAID_ENV has invalid value %q", v)
		}
	}

	countryCodes := []string{"US"}
	if v, ok := os.LookupEnv("LEDGERLINK_COUNTRY_CODES"); ok && v != "" {
		countryCodes = nil
		for _, code := range strings.Split(v, ",") {
			code = strings.TrimSpace(code)
			if code != "" {
				countryCodes = append(countryCodes, code)
			}
		}
		if len(countryCodes) == 0 {
			countryCodes = []string{"US"}
		}
	}

	userID := "default"
	if v, ok := os.LookupEnv("LEDGERLINK_USER_ID"); ok && v != "" {
		userID = v
	}

	syncInterval := 6 * time.Hour
	if v, ok := os.LookupEnv("LEDGERLINK_SYNC_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("LEDGERLINK_SYNC_INTERVAL has invalid duration %q: %w", v, err)
		}
		syncInterval = parsed
	}

	syncMonths := 6
	if v, ok := os.LookupEnv("LEDGERLINK_SYNC_MONTHS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("LEDGERLINK_SYNC_MONTHS must be a positive integer, got %q", v)
		}
		syncMonths = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("LEDGERLINK_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "ledgerlink.db"
	if v, ok := os.LookupEnv("LEDGERLINK_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		EncryptionKey:    key,
		PlaidClientID:    os.Getenv("LEDGERLINK_PLAID_CLIENT_ID"),
		PlaidSecret:      os.Getenv("LEDGERLINK_PLAID_SECRET"),
		PlaidEnvironment: env,
		CountryCodes:     countryCodes,
		UserID:           userID,
		SyncInterval:     syncInterval,
		SyncMonths:       syncMonths,
		ListenAddr:       listenAddr,
		DBPath:           dbPath,
	}, nil
}
