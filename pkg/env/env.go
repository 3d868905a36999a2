package env

import (
	"os"
	"strings"
)

// EnvLogFormat selects "json" (default) or "console" log output.
const EnvLogFormat = "BOOKINGS_LOG_FORMAT"

// Get returns the trimmed value of key, or fallback when it is unset or blank.
// It covers settings read before config.Load runs.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
