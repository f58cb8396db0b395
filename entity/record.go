package entity

// IDField is the PlainData key Record uses for its id.
const IDField = "id"

// Record is a map-backed, dynamic, identifiable entity. It accepts any field
// on apply and embeds a HookSet for lifecycle handlers.
type Record struct {
	HookSet
	data PlainData
}

// NewRecord creates a Record holding a copy of data.
func NewRecord(data PlainData) *Record {
	if data == nil {
		data = PlainData{}
	}
	return &Record{data: data.Clone()}
}

// ID returns the value of the "id" field, or nil.
func (r *Record) ID() any { return r.data[IDField] }

// Get returns a field value.
func (r *Record) Get(field string) (any, bool) {
	v, ok := r.data[field]
	return v, ok
}

// Set assigns a field value.
func (r *Record) Set(field string, value any) {
	if r.data == nil {
		r.data = PlainData{}
	}
	r.data[field] = value
}

// ToPlainData returns a copy of the record's fields.
func (r *Record) ToPlainData() PlainData {
	if r.data == nil {
		return PlainData{}
	}
	return r.data.Clone()
}

// ApplyPlainData merges data into the record. Without allowNewFields only
// fields the record already has are updated.
func (r *Record) ApplyPlainData(data PlainData, allowNewFields bool) error {
	if r.data == nil {
		r.data = PlainData{}
	}
	for k, v := range data {
		if _, exists := r.data[k]; exists || allowNewFields {
			r.data[k] = v
		}
	}
	return nil
}

// DynamicFields always reports true.
func (r *Record) DynamicFields() bool { return true }

// RecordClass is the Class for Record. Restore copies the data verbatim.
var RecordClass = NewClass("record", func() any { return &Record{} },
	WithConstructor(func(args ...any) (any, error) {
		if len(args) == 0 {
			return NewRecord(nil), nil
		}
		if d, ok := args[0].(PlainData); ok && len(args) == 1 {
			return NewRecord(d), nil
		}
		if m, ok := args[0].(map[string]any); ok && len(args) == 1 {
			return NewRecord(m), nil
		}
		return nil, errInvalidRecordArgs(args)
	}),
	WithRestore(func(data PlainData) (any, error) {
		return NewRecord(data), nil
	}),
)
