// Package redis wraps a go-redis client with connection pooling, key
// prefixing, JSON values and health checks.
//
//	client, err := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	defer client.Close()
//
//	err = client.SetJSON(ctx, client.Key("users", "42"), user, 0)
//
// Unwrap exposes the underlying client for pipelines and sorted sets.
package redis
