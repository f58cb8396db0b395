package gateway

import (
	"context"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/logger"
	"github.com/kbukum/persist/mapper"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
	"github.com/kbukum/persist/storage"
)

const component = "gateway"

// Gateway gives access to one collection as entities of one class.
type Gateway struct {
	class   *entity.Class
	store   storage.Store
	mapper  *mapper.ObjectMapper
	idField string
	log     *logger.Logger
	metrics *observability.Metrics
	tracing bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger. The default is the registered component
// logger, which is silent until a global logger is installed.
func WithLogger(l *logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMapper sets the ObjectMapper used for conversion and persistence.
// By default one is created with the gateway's logger, metrics and tracing.
func WithMapper(m *mapper.ObjectMapper) Option {
	return func(g *Gateway) { g.mapper = m }
}

// WithIDField names the record field holding the id. Defaults to "id".
func WithIDField(field string) Option {
	return func(g *Gateway) {
		if field != "" {
			g.idField = field
		}
	}
}

// WithMetrics records storage calls on metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *Gateway) { g.metrics = metrics }
}

// WithTracing opens a span per storage call.
func WithTracing(enabled bool) Option {
	return func(g *Gateway) { g.tracing = enabled }
}

// New returns a Gateway restoring records from store as class.
func New(class *entity.Class, store storage.Store, opts ...Option) (*Gateway, error) {
	if class == nil || !class.IsEntity() {
		return nil, errors.InvalidArgument("gateway needs an entity class")
	}
	if store == nil {
		return nil, errors.InvalidArgument("gateway needs a store")
	}
	g := &Gateway{
		class:   class,
		store:   store,
		idField: entity.IDField,
		log:     logger.Get(logger.ComponentGateway),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithComponent(component).WithFields(logger.Fields(logger.FieldClass, class.Name()))
	if g.mapper == nil {
		g.mapper = mapper.New(
			mapper.WithLogger(g.log),
			mapper.WithMetrics(g.metrics),
			mapper.WithTracing(g.tracing),
		)
	}
	return g, nil
}

// Class returns the entity class.
func (g *Gateway) Class() *entity.Class { return g.class }

// Store returns the underlying store.
func (g *Gateway) Store() storage.Store { return g.store }

// Create makes a new, unsaved entity.
func (g *Gateway) Create(args ...any) (entity.Entity, error) {
	return g.mapper.Create(g.class, args...)
}

// Optional lets Find return (nil, nil) instead of NOT_FOUND.
func Optional() storage.Option {
	return func(o *storage.Options) { o.Optional = true }
}

// Find returns the first entity matching idOrFilter, which is an id or a
// storage.Filter. It fails with NOT_FOUND when nothing matches, unless
// Optional is passed.
func (g *Gateway) Find(ctx context.Context, idOrFilter any, opts ...storage.Option) (entity.Entity, error) {
	filter, err := g.filterFor(idOrFilter)
	if err != nil {
		return nil, err
	}
	found, err := g.FindAll(ctx, filter, append(opts[:len(opts):len(opts)], storage.WithLimit(1))...)
	if err != nil {
		return nil, err
	}
	entities, err := pipeline.Collect(ctx, found)
	if err != nil {
		return nil, err
	}
	if len(entities) > 0 {
		return entities[0], nil
	}
	if storage.NewOptions(opts...).Optional {
		return nil, nil
	}
	return nil, errors.NotFound(g.class.Name(), idOrFilter)
}

// FindAll returns a lazy pipeline of the entities matching filter.
func (g *Gateway) FindAll(ctx context.Context, filter storage.Filter, opts ...storage.Option) (*pipeline.Pipeline[entity.Entity], error) {
	records, err := g.Fetch(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return g.mapper.Convert(g.class, records)
}

// Exists reports whether a record matches idOrFilter.
func (g *Gateway) Exists(ctx context.Context, idOrFilter any, opts ...storage.Option) (bool, error) {
	filter, err := g.filterFor(idOrFilter)
	if err != nil {
		return false, err
	}
	n, err := g.Count(ctx, filter, append(opts[:len(opts):len(opts)], storage.WithLimit(1))...)
	return n > 0, err
}

// Save validates and saves entities: a single entity, a slice, an
// iter.Seq or a pipeline. Entities implementing entity.Validating are
// checked first; a failure stops the save before any hook or storage call.
// Generated ids are applied back to the entities.
func (g *Gateway) Save(ctx context.Context, entities any) error {
	src, err := mapper.Normalize(entities)
	if err != nil {
		return err
	}
	index := 0
	validated := pipeline.Tap(src, func(_ context.Context, v any) error {
		i := index
		index++
		return validate(v, i)
	})
	return g.mapper.Save(ctx, g.persist, validated)
}

// Delete deletes entities, which must be entity.Identifiable. Entities
// without an id are skipped by storage but still get their hooks.
func (g *Gateway) Delete(ctx context.Context, entities any) error {
	return g.mapper.Delete(ctx, g.remove, entities)
}

// Fetch returns records without entity conversion.
func (g *Gateway) Fetch(ctx context.Context, filter storage.Filter, opts ...storage.Option) (p *pipeline.Pipeline[entity.PlainData], err error) {
	ctx, op := g.start(ctx, "fetch")
	defer func() { op.End(ctx, err) }()
	return g.store.Fetch(ctx, filter, opts...)
}

// Count returns the number of matching records.
func (g *Gateway) Count(ctx context.Context, filter storage.Filter, opts ...storage.Option) (n int, err error) {
	ctx, op := g.start(ctx, "count")
	defer func() { op.End(ctx, err) }()
	return g.store.Count(ctx, filter, opts...)
}

// Search runs a full text search and returns records.
func (g *Gateway) Search(ctx context.Context, terms string, filter storage.Filter, opts ...storage.Option) (p *pipeline.Pipeline[entity.PlainData], err error) {
	ctx, op := g.start(ctx, "search")
	defer func() { op.End(ctx, err) }()
	return g.store.Search(ctx, terms, filter, opts...)
}

func (g *Gateway) persist(ctx context.Context, records []entity.PlainData) (results []entity.PlainData, err error) {
	ctx, op := g.start(ctx, "save")
	op.Add(len(records))
	defer func() { op.End(ctx, err) }()
	return g.store.Save(ctx, records)
}

func (g *Gateway) remove(ctx context.Context, ids []any) (err error) {
	ctx, op := g.start(ctx, "delete")
	op.Add(len(ids))
	defer func() { op.End(ctx, err) }()

	filter := storage.Filter{g.idField: ids[0]}
	if len(ids) > 1 {
		filter = storage.Filter{g.idField + "(" + string(storage.OpIn) + ")": ids}
	}
	n, err := g.store.Delete(ctx, filter)
	if err != nil {
		return err
	}
	g.log.WithContext(ctx).Debug("records deleted", logger.Fields(logger.FieldBatchSize, n))
	return nil
}

func (g *Gateway) start(ctx context.Context, operation string) (context.Context, *observability.Operation) {
	return observability.StartOperation(ctx, observability.SpanStorage, operation, component, g.tracing, g.metrics)
}

// filterFor turns an id or a filter into a filter.
func (g *Gateway) filterFor(idOrFilter any) (storage.Filter, error) {
	switch v := idOrFilter.(type) {
	case storage.Filter:
		return v, nil
	case map[string]any:
		return storage.Filter(v), nil
	}
	if entity.IsAbsentID(idOrFilter) {
		return nil, errors.InvalidArgument("id must not be nil")
	}
	return storage.Filter{g.idField: idOrFilter}, nil
}

// validate runs e.Validate for Validating entities. Nil entities are left
// to the save pipeline's type guard.
func validate(v any, index int) error {
	e, ok := v.(entity.Validating)
	if !ok || entity.IsAbsentID(v) {
		return nil
	}
	err := e.Validate()
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.Clone().WithDetail("index", index)
	}
	return errors.InvalidArgument(err.Error()).WithCause(err).WithDetail("index", index)
}
