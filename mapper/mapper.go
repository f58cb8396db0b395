package mapper

import (
	"context"
	"reflect"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/logger"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
)

const component = "mapper"

// ObjectMapper converts stored records into entities and drives entities
// through the save and delete pipelines.
//
// The persist and delete functions are passed on every call, so one mapper
// can serve any number of stores. A mapper holds no mutable state and is safe
// for concurrent use, though the same entity must not be saved from two
// goroutines at once.
type ObjectMapper struct {
	save    SavePipeline
	delete  DeletePipeline
	log     *logger.Logger
	metrics *observability.Metrics
	tracing bool
}

// Option configures an ObjectMapper.
type Option func(*ObjectMapper)

// WithLogger sets the logger. The default is the registered component
// logger, which is silent until a global logger is installed.
func WithLogger(l *logger.Logger) Option {
	return func(m *ObjectMapper) {
		if l != nil {
			m.log = l.WithComponent(component)
		}
	}
}

// WithMetrics records batch metrics on every save and delete.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *ObjectMapper) { m.metrics = metrics }
}

// WithTracing wraps every save and delete in a span.
func WithTracing(enabled bool) Option {
	return func(m *ObjectMapper) { m.tracing = enabled }
}

// New creates an ObjectMapper using the standard save and delete pipelines.
func New(opts ...Option) *ObjectMapper {
	m := &ObjectMapper{
		save:   defaultSave,
		delete: defaultDelete,
		log:    logger.Get(logger.ComponentMapper),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithSave returns a mapper using p for saves. The receiver is returned when
// p is nil or already in use.
func (m *ObjectMapper) WithSave(p SavePipeline) *ObjectMapper {
	if p == nil || same(m.save, p) {
		return m
	}
	c := *m
	c.save = p
	return &c
}

// WithDelete returns a mapper using p for deletes. The receiver is returned
// when p is nil or already in use.
func (m *ObjectMapper) WithDelete(p DeletePipeline) *ObjectMapper {
	if p == nil || same(m.delete, p) {
		return m
	}
	c := *m
	c.delete = p
	return &c
}

func same(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	return ta == tb && ta != nil && ta.Comparable() && a == b
}

// Create instantiates an entity of class with the given constructor arguments.
func (m *ObjectMapper) Create(class *entity.Class, args ...any) (entity.Entity, error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	return class.New(args...)
}

// Convert lazily restores an entity of class from every record in src.
// Nothing is restored until the returned pipeline is pulled.
func (m *ObjectMapper) Convert(class *entity.Class, src *pipeline.Pipeline[entity.PlainData]) (*pipeline.Pipeline[entity.Entity], error) {
	convert, err := m.Converter(class)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.InvalidArgument("convert source must not be nil")
	}
	return convert(src), nil
}

// Converter returns the restore step for class without binding a source, so
// it can be composed after a fetch.
func (m *ObjectMapper) Converter(class *entity.Class) (func(*pipeline.Pipeline[entity.PlainData]) *pipeline.Pipeline[entity.Entity], error) {
	if err := checkClass(class); err != nil {
		return nil, err
	}
	return func(src *pipeline.Pipeline[entity.PlainData]) *pipeline.Pipeline[entity.Entity] {
		return pipeline.Map(src, func(_ context.Context, data entity.PlainData) (entity.Entity, error) {
			return class.Restore(data)
		})
	}, nil
}

// Save runs entities through the save pipeline with persist bound into it.
// entities may be a single Entity, a slice or array, an iter.Seq[T] or a
// *pipeline.Pipeline[T]. persist is called exactly once for a non-empty
// batch and not at all for an empty one.
//
// Every element is type checked before any hook runs. Errors from hooks or
// from persist are returned unchanged; entities already updated stay updated.
func (m *ObjectMapper) Save(ctx context.Context, persist PersistFunc, entities any) error {
	if persist == nil {
		return errors.InvalidArgument("persist function is required")
	}
	src, err := Normalize(entities)
	if err != nil {
		return err
	}
	bound, err := m.save.BindPersist(persist)
	if err != nil {
		return err
	}
	return m.walk(ctx, bound, src, observability.SpanMapperSave, "save")
}

// Delete runs entities through the delete pipeline with del bound into it.
// Entities must be Identifiable; those without an id skip del but still get
// their hooks. del is called at most once.
func (m *ObjectMapper) Delete(ctx context.Context, del DeleteFunc, entities any) error {
	if del == nil {
		return errors.InvalidArgument("delete function is required")
	}
	src, err := Normalize(entities)
	if err != nil {
		return err
	}
	bound, err := m.delete.BindDelete(del)
	if err != nil {
		return err
	}
	return m.walk(ctx, bound, src, observability.SpanMapperDelete, "delete")
}

func (m *ObjectMapper) walk(ctx context.Context, b *pipeline.Builder, src *pipeline.Pipeline[any], span, operation string) (err error) {
	ctx, op := observability.StartOperation(ctx, span, operation, component, m.tracing, m.metrics)
	defer func() { op.End(ctx, err) }()

	counted := pipeline.Tap(src, func(context.Context, any) error {
		op.Add(1)
		return nil
	})
	err = b.With(pipeline.Indexed(counted)).Walk(ctx)

	log := m.log.WithContext(ctx)
	fields := logger.DurationFields(operation, op.Duration())
	fields[logger.FieldBatchSize] = op.Size()
	if err != nil {
		fields[logger.FieldError] = err.Error()
		log.Debug("batch failed", fields)
		return err
	}
	log.Debug("batch done", fields)
	return nil
}

func checkClass(class *entity.Class) error {
	if class == nil {
		return errors.InvalidArgument("class must not be nil")
	}
	if !class.IsEntity() {
		return errors.InvalidArgumentf("class %q does not produce entities", class.Name()).
			WithDetail(logger.FieldClass, class.Name())
	}
	return nil
}
