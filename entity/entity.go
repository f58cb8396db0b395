package entity

import (
	"context"
	"maps"
	"reflect"
	"slices"
)

// PlainData is the persistence representation of an entity: field name to
// value. Key order is not significant.
type PlainData map[string]any

// Clone returns a shallow copy. A nil receiver yields nil.
func (d PlainData) Clone() PlainData {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// Keys returns the field names in sorted order.
func (d PlainData) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// Merge returns a copy of d overlaid with other.
func (d PlainData) Merge(other PlainData) PlainData {
	out := make(PlainData, len(d)+len(other))
	maps.Copy(out, d)
	maps.Copy(out, other)
	return out
}

// Hook names a lifecycle event.
type Hook string

const (
	BeforeSave   Hook = "before-save"
	AfterSave    Hook = "after-save"
	BeforeDelete Hook = "before-delete"
	AfterDelete  Hook = "after-delete"
)

// Entity is a domain object the mapper can persist.
type Entity interface {
	// ToPlainData extracts the persistable fields.
	ToPlainData() PlainData
	// ApplyPlainData assigns fields from data. Unknown fields are ignored
	// unless allowNewFields is set.
	ApplyPlainData(data PlainData, allowNewFields bool) error
	// TriggerHook runs the handlers for event. A non-nil result replaces
	// payload; nil means keep it.
	TriggerHook(ctx context.Context, event Hook, payload PlainData) (PlainData, error)
}

// Identifiable is an Entity with an id.
type Identifiable interface {
	Entity
	// ID returns the id, or nil when the entity has not been persisted.
	ID() any
}

// Dynamic is implemented by entities that accept fields they do not declare.
type Dynamic interface {
	Entity
	DynamicFields() bool
}

// Initializer is called after an entity is restored from PlainData without a
// restore factory, and after New allocates a blank entity.
type Initializer interface {
	Init() error
}

// Validating entities are checked by the gateway before they are saved.
type Validating interface {
	Validate() error
}

// IsAbsentID reports whether id denotes "not persisted": nil, or a typed nil
// pointer, map, slice or interface.
func IsAbsentID(id any) bool {
	if id == nil {
		return true
	}
	v := reflect.ValueOf(id)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// AllowsNewFields reports whether e accepts undeclared fields.
func AllowsNewFields(e Entity) bool {
	d, ok := e.(Dynamic)
	return ok && d.DynamicFields()
}
