package core

import (
	"fmt"
	"strings"
)

type StorageConfig struct {
	// Namespace is the logical service name records are stored under. One
	// namespace per embedding application.
	Namespace string `koanf:"namespace" mapstructure:"namespace"`
	// FallbackEnabled permits the encrypted file keyring when the platform
	// secret service is unreachable. It never permits plaintext storage.
	FallbackEnabled bool   `koanf:"fallback_enabled" mapstructure:"fallback_enabled"`
	FallbackPath    string `koanf:"fallback_path" mapstructure:"fallback_path"`
}

type EventsConfig struct {
	// QueueCapacity is the initial allocation for the delivery queue. The
	// queue itself is unbounded; this only sizes the first backing array.
	QueueCapacity int `koanf:"queue_capacity" mapstructure:"queue_capacity"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Storage     StorageConfig `koanf:"storage" mapstructure:"storage"`
	Events      EventsConfig  `koanf:"events" mapstructure:"events"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "hostbridge",
		Storage: StorageConfig{
			Namespace:       "hostbridge",
			FallbackEnabled: true,
		},
		Events: EventsConfig{
			QueueCapacity: 64,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Storage.Namespace) == "" {
		return fmt.Errorf("core: storage.namespace is required")
	}
	if c.Events.QueueCapacity < 0 {
		return fmt.Errorf("core: events.queue_capacity must not be negative")
	}
	return nil
}
