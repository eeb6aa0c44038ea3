package instance

import "os"

// GetID returns the process instance identifier used in logs. It prefers an
// explicit KEYSTOCK_INSTANCE_ID, then the hostname.
func GetID() string {
	if id := os.Getenv("KEYSTOCK_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
