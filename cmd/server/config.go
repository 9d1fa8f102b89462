package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"retailpos/internal/domain/posting"
)

// accountsFromEnv starts from the default chart and applies LEDGER_* overrides.
// LEDGER_INSTRUMENTS takes "cash=1010,card=1020,voucher=1030".
func accountsFromEnv() posting.Accounts {
	a := posting.DefaultAccounts()
	a.Receivable = getEnv("LEDGER_RECEIVABLE", a.Receivable)
	a.Payable = getEnv("LEDGER_PAYABLE", a.Payable)
	a.Revenue = getEnv("LEDGER_REVENUE", a.Revenue)
	a.TaxPayable = getEnv("LEDGER_TAX_PAYABLE", a.TaxPayable)
	a.Inventory = getEnv("LEDGER_INVENTORY", a.Inventory)
	a.TaxReceivable = getEnv("LEDGER_TAX_RECEIVABLE", a.TaxReceivable)
	a.OtherTender = getEnv("LEDGER_OTHER_TENDER", a.OtherTender)

	if raw := os.Getenv("LEDGER_INSTRUMENTS"); raw != "" {
		for _, pair := range strings.Split(raw, ",") {
			instrument, account, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok && instrument != "" && account != "" {
				a.Instruments[instrument] = account
			}
		}
	}
	return a
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
