// Package redis provides a Redis-backed id sequence.
//
// Counters live under "{prefix}sequence:{collection}". Seeding and advancing run as
// Lua scripts so concurrent ingestion processes never observe the same value, and
// advancing an unseeded counter fails with store.ErrCounterUninitialized instead of
// silently starting at one.
//
//	seq := redis.NewSequence(redis.RedisOptions{Addr: "localhost:6379", Prefix: "rag:"})
//	defer seq.Close()
package redis
