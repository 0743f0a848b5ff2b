// Package storage provides the durable key/value adapter that client state
// containers persist through.
//
// The contract mirrors browser local storage: string keys, opaque values,
// no expiry. GetItem returns (nil, nil) for a key that was never written or
// has been removed, so callers can treat "absent" and "empty" alike without
// inspecting errors.
//
// # Backends
//
//   - MemoryStore: process-local map, used in tests and by the gateway when
//     no durable backend is configured
//   - FileStore: one file per key under a directory, written atomically
//   - RedisStore: shared keys in Redis via github.com/redis/go-redis/v9
//   - S3Store: objects in a bucket via aws-sdk-go-v2
//
// WithPrefix namespaces any backend, which is how several browser contexts
// share one Redis or S3 backend without seeing each other's carts.
//
// # Usage
//
//	store, err := storage.Open(ctx, cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	_ = store.SetItem(ctx, "cart", []byte(`[]`))
package storage
