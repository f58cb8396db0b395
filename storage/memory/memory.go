// Package memory is an in-process storage backend. Records live in insertion
// order and are lost when the process exits; it backs tests and the default
// configuration.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/logger"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
	"github.com/kbukum/persist/storage"
)

const backend = storage.DriverMemory

func init() {
	storage.RegisterFactory(storage.DriverMemory, func(_ context.Context, cfg storage.Config, log *logger.Logger) (storage.Store, error) {
		return New(cfg.IDField, log), nil
	})
}

// Store keeps records in memory.
type Store struct {
	mu      sync.RWMutex
	idField string
	order   []string
	records map[string]entity.PlainData
	closed  bool
	log     *logger.Logger
}

var _ storage.Store = (*Store)(nil)

// New returns an empty Store keyed on idField.
func New(idField string, log *logger.Logger) *Store {
	if idField == "" {
		idField = entity.IDField
	}
	if log == nil {
		log = logger.Get(logger.ComponentStorage)
	}
	return &Store{
		idField: idField,
		records: make(map[string]entity.PlainData),
		log:     log,
	}
}

// Save stores copies of records. Records without an id get a UUID.
func (s *Store) Save(ctx context.Context, records []entity.PlainData) ([]entity.PlainData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed(backend)
	}

	results := make([]entity.PlainData, len(records))
	for i, rec := range records {
		rec = rec.Clone()
		if rec == nil {
			rec = entity.PlainData{}
		}
		id, ok := rec[s.idField]
		if !ok || entity.IsAbsentID(id) {
			id = uuid.NewString()
			rec[s.idField] = id
			results[i] = entity.PlainData{s.idField: id}
		}
		key := storage.IDKey(id)
		if _, exists := s.records[key]; !exists {
			s.order = append(s.order, key)
		}
		s.records[key] = rec
	}
	s.log.Debug("records saved", logger.Fields(logger.FieldBatchSize, len(records)))
	return results, nil
}

// Fetch returns copies of the matching records.
func (s *Store) Fetch(ctx context.Context, filter storage.Filter, opts ...storage.Option) (*pipeline.Pipeline[entity.PlainData], error) {
	matched, err := s.query(ctx, filter, "", opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.FromSlice(matched), nil
}

// Search is Fetch restricted to records containing every term.
func (s *Store) Search(ctx context.Context, terms string, filter storage.Filter, opts ...storage.Option) (*pipeline.Pipeline[entity.PlainData], error) {
	matched, err := s.query(ctx, filter, terms, opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.FromSlice(matched), nil
}

// Count returns the number of matching records.
func (s *Store) Count(ctx context.Context, filter storage.Filter, opts ...storage.Option) (int, error) {
	matched, err := s.query(ctx, filter, "", opts...)
	if err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Delete removes the matching records.
func (s *Store) Delete(ctx context.Context, filter storage.Filter) (int, error) {
	conds, err := filter.Conditions()
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrClosed(backend)
	}

	kept := s.order[:0]
	removed := 0
	for _, key := range s.order {
		if storage.Match(conds, s.records[key]) {
			delete(s.records, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return removed, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// CheckHealth reports the store up until it is closed.
func (s *Store) CheckHealth(_ context.Context) observability.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return observability.Health{Name: backend, Status: observability.HealthStatusDown, Message: "closed"}
	}
	return observability.Health{
		Name:    backend,
		Status:  observability.HealthStatusUp,
		Details: map[string]string{"records": strconv.Itoa(len(s.records))},
	}
}

// Close drops all records.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	s.order = nil
	return nil
}

func (s *Store) query(ctx context.Context, filter storage.Filter, terms string, opts ...storage.Option) ([]entity.PlainData, error) {
	conds, err := filter.Conditions()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, storage.ErrClosed(backend)
	}
	snapshot := make([]entity.PlainData, 0, len(s.order))
	for _, key := range s.order {
		rec := s.records[key]
		if terms == "" || storage.MatchText(rec, terms) {
			snapshot = append(snapshot, rec.Clone())
		}
	}
	s.mu.RUnlock()
	return storage.Select(ctx, snapshot, conds, storage.NewOptions(opts...))
}
