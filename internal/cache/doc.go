// Package cache persists namespaced key/value entries in SQLite.
//
// The engine uses it as a plain key/value store with single-key set, get,
// and delete semantics; there are no multi-key transactional guarantees and
// callers must not assume atomicity across keys. Keys are slash-namespaced
// logical paths such as pending/tx-12 or done/tx-ceiling.
package cache
