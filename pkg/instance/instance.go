package instance

import "os"

// GetID returns the worker instance identifier. Falls back to the hostname
// so pod names show up in logs when WORKER_ID is unset.
func GetID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
