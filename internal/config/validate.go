package config

import (
	"errors"
	"fmt"
	"strings"
)

// Batch setting bounds shared with the queue's per-job settings.
const (
	MinVideoDuration     = 300
	MaxVideoDuration     = 1800
	MinConcurrentBatches = 1
	MaxConcurrentBatches = 5
	MaxBatchOffset       = 300
	MinPresubDuration    = 60
	MaxPresubDuration    = 300
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateBroker(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return errors.New("provider.temperature must be between 0 and 2")
	}
	if err := ensurePositiveMap(map[string]int{
		"provider.timeout_seconds": c.Provider.TimeoutSeconds,
	}); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Provider.Profiles))
	for _, profile := range c.Provider.Profiles {
		if profile.ID == "" {
			return errors.New("provider.profiles entries must set id")
		}
		if _, dup := seen[profile.ID]; dup {
			return fmt.Errorf("provider.profiles id %q is duplicated", profile.ID)
		}
		seen[profile.ID] = struct{}{}
		if profile.Temperature < 0 || profile.Temperature > 2 {
			return fmt.Errorf("provider.profiles[%s].temperature must be between 0 and 2", profile.ID)
		}
	}
	return nil
}

func (c *Config) validateBatch() error {
	return ValidateBatch(c.Batch)
}

// ValidateBatch checks batch settings against their documented ranges.
func ValidateBatch(b Batch) error {
	if b.MaxVideoDuration < MinVideoDuration || b.MaxVideoDuration > MaxVideoDuration {
		return fmt.Errorf("batch.max_video_duration must be between %d and %d", MinVideoDuration, MaxVideoDuration)
	}
	if b.MaxConcurrentBatches < MinConcurrentBatches || b.MaxConcurrentBatches > MaxConcurrentBatches {
		return fmt.Errorf("batch.max_concurrent_batches must be between %d and %d", MinConcurrentBatches, MaxConcurrentBatches)
	}
	if b.BatchOffset < 0 || b.BatchOffset > MaxBatchOffset {
		return fmt.Errorf("batch.batch_offset must be between 0 and %d", MaxBatchOffset)
	}
	if b.PresubDuration < MinPresubDuration || b.PresubDuration > MaxPresubDuration {
		return fmt.Errorf("batch.presub_duration must be between %d and %d", MinPresubDuration, MaxPresubDuration)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if !strings.Contains(c.API.Bind, ":") {
		return fmt.Errorf("api.bind %q must be host:port", c.API.Bind)
	}
	return nil
}

func (c *Config) validateBroker() error {
	if !c.Broker.Enabled {
		return nil
	}
	if c.Broker.URL == "" {
		return errors.New("broker.url must be set when broker.enabled is true (or set SUBTRANS_AMQP_URL)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
