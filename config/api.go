package config

import "fmt"

// APIConfig defines the connection to the resource store backing the board.
type APIConfig struct {
	// BaseURL is the root of the REST resource store.
	BaseURL string `json:"base_url"`
	// TimeoutSeconds bounds each request.
	TimeoutSeconds int `json:"timeout_seconds"`
	// PollIntervalSeconds drives the background refresh of the expanded
	// order list.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *APIConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 30
	}
}

// Validate checks mandatory fields.
func (c APIConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	return nil
}
