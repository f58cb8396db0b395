package main

import (
	"context"
	"strings"
	"time"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
)

// document is a typed entity with a fixed set of fields. Unknown fields in
// imported data are dropped. Saving stamps created_at and updated_at.
type document struct {
	entity.HookSet `json:"-"`

	Key       any      `json:"id,omitempty"`
	Title     string   `json:"title"`
	Body      string   `json:"body,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// now is replaced in tests.
var now = time.Now

func newDocument() *document {
	d := &document{}
	d.On(entity.BeforeSave, stamp)
	return d
}

func stamp(_ context.Context, data entity.PlainData) (entity.PlainData, error) {
	ts := now().UTC().Format(time.RFC3339)
	out := data.Clone()
	if v, _ := out["created_at"].(string); v == "" {
		out["created_at"] = ts
	}
	out["updated_at"] = ts
	return out, nil
}

func (d *document) ID() any { return d.Key }

func (d *document) ToPlainData() entity.PlainData {
	data, err := entity.Encode(d)
	if err != nil {
		return entity.PlainData{}
	}
	return data
}

func (d *document) ApplyPlainData(data entity.PlainData, allowNewFields bool) error {
	return entity.Decode(data, d, allowNewFields)
}

func (d *document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.InvalidArgument("document title is required").WithDetail("field", "title")
	}
	return nil
}

var documentClass = entity.NewClass("document", func() any { return newDocument() },
	entity.WithConstructor(func(args ...any) (any, error) {
		d := newDocument()
		switch {
		case len(args) == 0:
			return d, nil
		case len(args) > 1:
			return nil, errors.InvalidArgumentf("document takes one data argument, got %d", len(args))
		}
		var data entity.PlainData
		switch v := args[0].(type) {
		case entity.PlainData:
			data = v
		case map[string]any:
			data = v
		default:
			return nil, errors.InvalidArgumentf("document data must be a map, got %T", args[0])
		}
		if err := entity.Decode(data, d, false); err != nil {
			return nil, err
		}
		return d, nil
	}),
)

// newClasses returns the entity classes persistctl can import as.
func newClasses() (*entity.Registry, error) {
	return entity.NewRegistry(entity.RecordClass, documentClass)
}

// lookupClass resolves a --class value.
func lookupClass(name string) (*entity.Class, error) {
	classes, err := newClasses()
	if err != nil {
		return nil, err
	}
	class, err := classes.Lookup(name)
	if err != nil {
		return nil, errors.InvalidArgumentf("unknown entity class %q, want one of %s",
			name, strings.Join(classes.Names(), ", ")).WithCause(err)
	}
	return class, nil
}
