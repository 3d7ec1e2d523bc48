// Package registry maps host-scene objects to asset instances and caches the
// last good cook of each.
//
// UpdateResult is the only way a cook outcome reaches an instance. It rejects
// results older than the newest one applied, keeps the previous success
// visible when a cook fails, and ignores cancelled cooks. When a result store
// is attached, successes are persisted and a newly registered instance is
// seeded from its stored record so the host has something to show before the
// first cook completes.
package registry
