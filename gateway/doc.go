// Package gateway binds an entity class to a storage backend.
//
// A Gateway converts between records and entities and runs saves and
// deletes through a mapper.ObjectMapper, so entity hooks fire and generated
// ids are applied back:
//
//	store, _ := storage.Open(ctx, storage.Config{Driver: "sqlite"}, log)
//	users, _ := gateway.New(entity.ClassFor[User]("user"), store, gateway.WithLogger(log))
//
//	u, _ := users.Create()
//	err := users.Save(ctx, u)
//	found, err := users.Find(ctx, u.(*User).ID)
//	maybe, err := users.Find(ctx, storage.Filter{"email": addr}, gateway.Optional())
//
// Fetch, Count and Search skip entity conversion and return records.
package gateway
