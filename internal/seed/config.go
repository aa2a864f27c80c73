package seed

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Table          string
	Accounts       int
	RowsPerAccount int
	StartDate      time.Time
	OpeningBalance float64
	Seed           int64
}

func DefaultConfig() Config {
	return Config{
		Table:          "account_statement",
		Accounts:       3,
		RowsPerAccount: 40,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		OpeningBalance: 5000,
		Seed:           time.Now().UTC().UnixNano(),
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyString(lookup, "LEDGERLENS_SEED_TABLE", &cfg.Table); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "LEDGERLENS_SEED_ACCOUNTS", &cfg.Accounts); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "LEDGERLENS_SEED_ROWS_PER_ACCOUNT", &cfg.RowsPerAccount); err != nil {
		return Config{}, err
	}
	if err := applyDate(lookup, "LEDGERLENS_SEED_START_DATE", &cfg.StartDate); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "LEDGERLENS_SEED_OPENING_BALANCE", &cfg.OpeningBalance); err != nil {
		return Config{}, err
	}
	if err := applyInt64(lookup, "LEDGERLENS_SEED_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.Table) == "" {
		return Config{}, fmt.Errorf("LEDGERLENS_SEED_TABLE is required")
	}
	if cfg.Accounts <= 0 {
		return Config{}, fmt.Errorf("LEDGERLENS_SEED_ACCOUNTS must be > 0")
	}
	if cfg.RowsPerAccount <= 0 {
		return Config{}, fmt.Errorf("LEDGERLENS_SEED_ROWS_PER_ACCOUNT must be > 0")
	}
	if cfg.OpeningBalance < 0 {
		return Config{}, fmt.Errorf("LEDGERLENS_SEED_OPENING_BALANCE must be >= 0")
	}
	return cfg, nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyDate(lookup LookupFunc, key string, dst *time.Time) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
