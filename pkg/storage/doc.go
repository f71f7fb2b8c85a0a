// Package storage persists fetched payloads.
//
// Three backends implement fetch.Saver:
//
//   - FileStore writes each payload to a file in a destination directory
//   - RedisStore keeps payloads in Redis as JSON entries with an optional TTL
//   - Discard drops payloads (benchmark runs)
//
// # Basic Usage
//
//	store, err := storage.NewFileStore("downloads")
//	if err != nil {
//		return err
//	}
//	if err := store.Save(ctx, image, "cn.gif"); err != nil {
//		return err
//	}
//
// # Redis
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := storage.NewRedisStore(redisClient, storage.DefaultOptions())
//
//	// Stored at "flags:payload:cn.gif"
//	entry, err := store.Load(ctx, "cn.gif")
//	if errors.Is(err, storage.ErrNotStored) {
//		// never saved or expired
//	}
//
// # Metrics
//
//   - fetch_store_saves_total{backend,result} - Save calls
//   - fetch_store_bytes_total{backend} - Bytes persisted
//   - fetch_store_errors_total{backend,operation} - Failed store operations
package storage
