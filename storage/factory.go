package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/logger"
)

// Factory opens a Store from configuration.
type Factory func(ctx context.Context, cfg Config, log *logger.Logger) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a backend factory under a driver name. Backend
// packages call this in init, so importing a backend makes it available to
// Open:
//
//	import _ "github.com/kbukum/persist/storage/sqlstore"
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Drivers lists the registered driver names.
func Drivers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get(logger.ComponentStorage)
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Driver]
	factoriesMu.RUnlock()
	if !ok {
		return nil, errors.InvalidArgumentf("storage driver %q is not registered", cfg.Driver).
			WithDetail(logger.FieldDriver, cfg.Driver)
	}

	l := log.WithComponent("storage").WithFields(logger.Fields(
		logger.FieldDriver, cfg.Driver,
		logger.FieldCollection, cfg.Collection,
	))
	l.Info("opening storage")
	return f(ctx, cfg, l)
}
