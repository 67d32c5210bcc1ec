package instance

import (
	"os"

	"github.com/angelmondragon/commerce-core/pkg/env"
)

const idEnvKey = "COMMERCE_INSTANCE_ID"

// GetID returns the process identity used as the owner of distributed locks.
// It prefers COMMERCE_INSTANCE_ID, then the hostname, then "local".
func GetID() string {
	if id := env.Get(idEnvKey, ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
