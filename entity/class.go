package entity

import (
	"fmt"

	"github.com/kbukum/persist/errors"
)

// Class knows how to produce entities of one type. It stands in for a type
// name: the mapper asks it for fresh entities (New) and for entities rebuilt
// from stored data (Restore).
type Class struct {
	name      string
	blank     func() any
	construct func(args ...any) (any, error)
	restore   func(data PlainData) (any, error)
}

// ClassOption configures a Class.
type ClassOption func(*Class)

// WithConstructor sets the factory New uses. Without it New only accepts zero
// arguments and returns a blank entity.
func WithConstructor(fn func(args ...any) (any, error)) ClassOption {
	return func(c *Class) { c.construct = fn }
}

// WithRestore sets a factory that builds an entity straight from PlainData,
// bypassing ApplyPlainData and Init.
func WithRestore(fn func(data PlainData) (any, error)) ClassOption {
	return func(c *Class) { c.restore = fn }
}

// NewClass creates a Class. blank must return a fresh, zero entity on every
// call (typically a new pointer).
func NewClass(name string, blank func() any, opts ...ClassOption) *Class {
	c := &Class{name: name, blank: blank}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassFor creates a Class whose blank entity is new(T).
func ClassFor[T any](name string, opts ...ClassOption) *Class {
	return NewClass(name, func() any { return new(T) }, opts...)
}

// Name returns the class name.
func (c *Class) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// IsEntity reports whether the class produces values implementing Entity.
func (c *Class) IsEntity() bool {
	if c == nil || c.blank == nil {
		return false
	}
	_, ok := c.blank().(Entity)
	return ok
}

// New constructs an entity from args.
func (c *Class) New(args ...any) (Entity, error) {
	if !c.IsEntity() {
		return nil, errors.InvalidArgumentf("%s is not an entity class", c.describe())
	}
	if c.construct != nil {
		v, err := c.construct(args...)
		if err != nil {
			return nil, err
		}
		return c.asEntity(v)
	}
	if len(args) > 0 {
		return nil, errors.InvalidArgumentf("class %s takes no constructor arguments, %d given", c.name, len(args))
	}
	e, _ := c.blank().(Entity)
	if err := initialize(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Restore rebuilds an entity from stored data. A restore factory is preferred;
// otherwise a blank entity is allocated, data is applied (new fields allowed
// for Dynamic entities) and Init runs if the entity has it.
func (c *Class) Restore(data PlainData) (Entity, error) {
	if !c.IsEntity() {
		return nil, errors.InvalidArgumentf("%s is not an entity class", c.describe())
	}
	if c.restore != nil {
		v, err := c.restore(data)
		if err != nil {
			return nil, err
		}
		return c.asEntity(v)
	}
	e, _ := c.blank().(Entity)
	if err := e.ApplyPlainData(data, AllowsNewFields(e)); err != nil {
		return nil, err
	}
	if err := initialize(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Class) asEntity(v any) (Entity, error) {
	e, ok := v.(Entity)
	if !ok {
		return nil, errors.TypeMismatch(0, "entity.Entity", v).
			WithDetail("class", c.name)
	}
	return e, nil
}

func (c *Class) describe() string {
	if c == nil {
		return "nil class"
	}
	return fmt.Sprintf("class %q", c.name)
}

func initialize(e Entity) error {
	if in, ok := e.(Initializer); ok {
		return in.Init()
	}
	return nil
}

func errInvalidRecordArgs(args []any) error {
	return errors.InvalidArgumentf("record takes a single map argument, got %d arguments", len(args))
}
