package instance

import (
	"os"
	"strings"

	"github.com/angelmondragon/bookings-backend/pkg/env"
)

// EnvInstanceID overrides the identifier reported in worker logs.
const EnvInstanceID = "BOOKINGS_INSTANCE_ID"

const fallbackID = "worker-0"

var hostname = os.Hostname

// GetID returns the configured instance identifier, then the host name,
// then a fixed default.
func GetID() string {
	if id := env.Get(EnvInstanceID, ""); id != "" {
		return id
	}
	if h, err := hostname(); err == nil && strings.TrimSpace(h) != "" {
		return h
	}
	return fallbackID
}
