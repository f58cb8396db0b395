package storage

import (
	"github.com/kbukum/persist/database"
	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/redis"
	"github.com/kbukum/persist/validation"
)

// Driver names for the built-in backends.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Default configuration values.
const (
	DefaultDriver     = DriverMemory
	DefaultCollection = "records"
)

// Config selects and configures a backend.
type Config struct {
	// Driver selects the backend: "memory", "sqlite" or "redis".
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=memory sqlite redis"`

	// Collection names the table partition or key space records live in.
	Collection string `yaml:"collection" mapstructure:"collection" validate:"required,max=64"`

	// IDField is the record field holding the id.
	IDField string `yaml:"id_field" mapstructure:"id_field" validate:"required"`

	// SQL configures the sqlite driver.
	SQL database.Config `yaml:"sql" mapstructure:"sql"`

	// Redis configures the redis driver.
	Redis redis.Config `yaml:"redis" mapstructure:"redis"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DefaultDriver
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.IDField == "" {
		c.IDField = entity.IDField
	}
	switch c.Driver {
	case DriverSQLite:
		c.SQL.Enabled = true
		c.SQL.ApplyDefaults()
	case DriverRedis:
		c.Redis.Enabled = true
		c.Redis.ApplyDefaults()
	}
}

// Validate checks the configuration, including the selected driver's section.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	switch c.Driver {
	case DriverSQLite:
		return c.SQL.Validate()
	case DriverRedis:
		return c.Redis.Validate()
	}
	return nil
}
