// Package storage defines the record level boundary the mapper persists
// through, and the helpers its backends share.
//
// A Store works on entity.PlainData records in one collection. Backends
// live in sub-packages and register themselves by driver name:
//
//	import _ "github.com/kbukum/persist/storage/memory"
//
//	store, err := storage.Open(ctx, storage.Config{Driver: "memory"}, log)
//	recs, err := store.Fetch(ctx, storage.Filter{"age(min)": 18}, storage.WithLimit(10))
//
// Filter keys name a field and optionally an operator: eq (default), not,
// in, not in, min, max and like.
package storage
