// Package testutil holds a behaviour suite every storage backend must pass.
//
//	func TestStore(t *testing.T) {
//	    testutil.RunSuite(t, func(t *testing.T) storage.Store {
//	        return memory.New("id", nil)
//	    })
//	}
//
// Stores are expected to use "id" as id field and to start empty.
package testutil
