package storage

import "strings"

// Options control paging and ordering of a query.
type Options struct {
	Limit  int
	Offset int
	// Sort lists field names; a leading '-' sorts descending.
	Sort []string
	// Optional lets a single-record lookup find nothing. Backends ignore it.
	Optional bool
}

// Option configures Options.
type Option func(*Options)

// WithLimit caps the number of records returned. Zero means no limit.
func WithLimit(n int) Option {
	return func(o *Options) { o.Limit = n }
}

// WithOffset skips the first n records.
func WithOffset(n int) Option {
	return func(o *Options) { o.Offset = n }
}

// WithSort orders by the given fields, e.g. WithSort("-created", "name").
func WithSort(fields ...string) Option {
	return func(o *Options) { o.Sort = append(o.Sort, fields...) }
}

// NewOptions applies opts to zero Options.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Limit < 0 {
		o.Limit = 0
	}
	return o
}

// Window returns how many of total records fall inside offset and limit.
func (o Options) Window(total int) int {
	n := total - o.Offset
	if n < 0 {
		return 0
	}
	if o.Limit > 0 && n > o.Limit {
		return o.Limit
	}
	return n
}

// SortKey splits a sort entry into field name and direction.
func SortKey(entry string) (field string, desc bool) {
	if strings.HasPrefix(entry, "-") {
		return entry[1:], true
	}
	return strings.TrimPrefix(entry, "+"), false
}
