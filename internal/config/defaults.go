package config

import "time"

// DefaultConfig returns the configuration used when no files override it.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "~/.stagetrack/stagetrack.db",
		},
		Monitor: MonitorConfig{
			RefreshInterval: Duration(time.Minute),
			Concurrency:     4,
			WatchStore:      boolPtr(true),
			Retry: RetryConfig{
				InitialInterval: Duration(100 * time.Millisecond),
				MaxInterval:     Duration(5 * time.Second),
				MaxElapsedTime:  Duration(30 * time.Second),
			},
		},
	}
}

func boolPtr(v bool) *bool { return &v }
