package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that reads and writes Go duration strings ("1m", "30s").
type Duration time.Duration

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// DatabaseConfig locates the SQLite task store.
type DatabaseConfig struct {
	Path string `json:"path,omitempty" validate:"required"` // Supports a leading "~/"
}

// RetryConfig tunes retries of task-store reads.
type RetryConfig struct {
	InitialInterval Duration `json:"initial_interval,omitempty"`
	MaxInterval     Duration `json:"max_interval,omitempty"`
	MaxElapsedTime  Duration `json:"max_elapsed_time,omitempty"`
}

// MonitorConfig controls background stage recomputation.
type MonitorConfig struct {
	RefreshInterval Duration    `json:"refresh_interval,omitempty" validate:"gte=1000000000"` // At least 1s
	Concurrency     int         `json:"concurrency,omitempty" validate:"min=1,max=64"`        // Projects evaluated in parallel
	WatchStore      *bool       `json:"watch_store,omitempty"`                                // Refresh when the database file changes
	Retry           RetryConfig `json:"retry"`
}

// WatchEnabled reports whether database file watching is on (default true).
func (m MonitorConfig) WatchEnabled() bool {
	return m.WatchStore == nil || *m.WatchStore
}

// StageConfig declares one execution stage.
// AllottedDays nil means the stage has no timeline.
type StageConfig struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name,omitempty"`
	Color        string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Min          int    `json:"min" validate:"min=1"`
	Max          int    `json:"max" validate:"gtefield=Min"`
	AllottedDays *int   `json:"allotted_days,omitempty" validate:"omitempty,min=0"`
	After        string `json:"after,omitempty" validate:"omitempty,nefield=ID"` // ID of the preceding stage; empty for the first
}

// Config is the top-level configuration.
type Config struct {
	Database DatabaseConfig `json:"database"`
	Monitor  MonitorConfig  `json:"monitor"`
	Stages   []StageConfig  `json:"stages,omitempty" validate:"unique=ID,dive"` // Empty means the built-in catalog
}
