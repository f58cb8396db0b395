package main

import (
	"fmt"

	"github.com/kbukum/persist/config"
	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/storage"
	"github.com/kbukum/persist/version"
)

const serviceName = "persistctl"

// Config is the persistctl configuration file layout.
//
//	name: persistctl
//	logging:
//	  level: info
//	storage:
//	  driver: sqlite
//	  collection: people
//	  sql:
//	    dsn: people.db
//	    auto_migrate: true
//	observability:
//	  enabled: false
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
	Storage              storage.Config       `yaml:"storage" mapstructure:"storage"`
	Observability        observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills in unset fields. Logs go to stderr so stdout carries
// only command output.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	if c.Version == "" {
		c.Version = version.Get().Version
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
	c.ServiceConfig.ApplyDefaults()
	c.Storage.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("config.storage: %w", err)
	}
	if c.Storage.IDField != entity.IDField {
		return fmt.Errorf("config.storage.id_field must be %q for persistctl (got: %s)", entity.IDField, c.Storage.IDField)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config.observability: %w", err)
	}
	return nil
}
