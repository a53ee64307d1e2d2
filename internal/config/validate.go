package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateBuffer(); err != nil {
		return err
	}
	if err := c.validateApproval(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("ledger.backend: unsupported value %q (want csv or sqlite)", c.Ledger.Backend)
	}
	if c.Ledger.Path == "" {
		return errors.New("ledger.path must be set")
	}
	return nil
}

// validateBuffer rejects negative watermarks. A target below the low watermark
// is accepted here and flagged by the buffer check at runtime.
func (c *Config) validateBuffer() error {
	if c.Buffer.LowWatermark < 0 {
		return errors.New("buffer.low_watermark must be >= 0")
	}
	if c.Buffer.Target < 0 {
		return errors.New("buffer.target must be >= 0")
	}
	return nil
}

func (c *Config) validateApproval() error {
	if c.Approval.TimeoutSeconds <= 0 {
		return errors.New("approval.timeout_seconds must be positive")
	}
	switch c.Approval.Backend {
	case "telegram":
		if c.Approval.ChannelID == "" {
			return errors.New("approval.channel_id must be set when approval.backend is telegram")
		}
	case "console", "auto":
	default:
		return fmt.Errorf("approval.backend: unsupported value %q (want telegram, console, or auto)", c.Approval.Backend)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	intervals := map[string]int{
		"schedule.propose_seconds":      c.Schedule.ProposeSeconds,
		"schedule.enqueue_seconds":      c.Schedule.EnqueueSeconds,
		"schedule.publish_seconds":      c.Schedule.PublishSeconds,
		"schedule.buffer_check_seconds": c.Schedule.BufferCheckSeconds,
		"schedule.analytics_seconds":    c.Schedule.AnalyticsSeconds,
	}
	for key, value := range intervals {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
