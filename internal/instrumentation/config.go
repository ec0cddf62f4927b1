package instrumentation

import "os"

// Config holds the configuration for OpenTelemetry instrumentation.
type Config struct {
	// ServiceName is the name of the service (default: calagent).
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Enabled determines if instrumentation is active (default: true).
	// Set INSTRUMENTATION_ENABLED=false to disable metrics.
	Enabled bool
}

// DefaultConfig returns the default instrumentation configuration with
// environment variable overrides applied.
func DefaultConfig() Config {
	cfg := Config{
		ServiceName:    "calagent",
		ServiceVersion: "dev",
		Enabled:        true,
	}

	if v := os.Getenv("INSTRUMENTATION_ENABLED"); v == "false" {
		cfg.Enabled = false
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}

	return cfg
}
