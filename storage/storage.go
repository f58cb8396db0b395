package storage

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/logger"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
)

// CRUD is the record level interface of a collection.
type CRUD interface {
	// Fetch returns the records matching filter.
	Fetch(ctx context.Context, filter Filter, opts ...Option) (*pipeline.Pipeline[entity.PlainData], error)

	// Count returns the number of records matching filter, within the
	// offset and limit of opts.
	Count(ctx context.Context, filter Filter, opts ...Option) (int, error)

	// Save inserts or replaces records in one operation. A record with an
	// id replaces the stored one; a record without gets a new id.
	//
	// The result is positional: result i holds the fields storage generated
	// for records[i] (the new id) and is nil when nothing was generated.
	Save(ctx context.Context, records []entity.PlainData) ([]entity.PlainData, error)

	// Delete removes the records matching filter and returns how many were removed.
	Delete(ctx context.Context, filter Filter) (int, error)
}

// Searcher runs full text search over a collection.
type Searcher interface {
	// Search returns the records matching filter whose text values contain
	// every term.
	Search(ctx context.Context, terms string, filter Filter, opts ...Option) (*pipeline.Pipeline[entity.PlainData], error)
}

// Store is a collection backend.
type Store interface {
	CRUD
	Searcher
	observability.HealthChecker

	// Close releases the backend's resources. Safe to call more than once.
	Close() error
}

// ErrClosed builds the error a backend returns once it has been closed.
func ErrClosed(backend string) error {
	return errors.InvalidOperation(backend + " store is closed").WithDetail(logger.FieldDriver, backend)
}

// IDKey renders an id as a map or key-space key. Numbers of any Go type
// produce the same key for the same value, so an id read back from JSON as
// float64 finds the record saved under an int.
// Integers keep every digit; a float with an integral value renders like the
// integer.
func IDKey(id any) string {
	if n, ok := intOf(id); ok {
		return n.String()
	}
	if f, ok := toFloat(id); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(id)
}
