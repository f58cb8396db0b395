// Package entity defines the capabilities a domain object needs to be
// persisted by the mapper, and the factories used to build entities from
// stored data.
//
// An Entity converts itself to PlainData, accepts PlainData back after a
// save, and dispatches lifecycle hooks. Identifiable entities additionally
// expose an id; an absent id (nil or a typed nil pointer) means the entity has
// not been persisted yet.
//
// Struct entities usually implement the conversions with Encode and Decode,
// which map fields by their json tag:
//
//	type User struct {
//	    entity.HookSet `json:"-"`
//	    Key   int    `json:"id,omitempty"`
//	    Name  string `json:"name"`
//	}
//
//	func (u *User) ID() any {
//	    if u.Key == 0 {
//	        return nil
//	    }
//	    return u.Key
//	}
//
//	func (u *User) ToPlainData() entity.PlainData { d, _ := entity.Encode(u); return d }
//	func (u *User) ApplyPlainData(d entity.PlainData, dyn bool) error { return entity.Decode(d, u, dyn) }
//
// Record is a ready-made map-backed entity for schemaless data.
package entity
