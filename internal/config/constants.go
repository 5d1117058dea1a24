package config

import "time"

const (
	// DefaultAuditDatabasePath is used by the history command when no ledger path is configured
	DefaultAuditDatabasePath = "./so4t-import.db"

	// DefaultHTTPTimeout applies when HTTP_TIMEOUT is unset, malformed or not positive
	DefaultHTTPTimeout = 60 * time.Second
)
