// Package uowcache decorates a store.UnitOfWork with a transaction-scoped
// read cache. Repeated reads inside one unit of work hit the cache; writes
// invalidate the affected entries; Commit, Rollback, and Close drop the
// whole cache because its lifetime is the transaction's.
//
// Invalidation is tag based. Every cached read is registered under the exact
// tags of the entities it covers ("habit:12", "list:3", "user:<uuid>"), and a
// write invalidates by tag lookup rather than by key substring match, so
// touching habit 12 never disturbs entries for habit 123.
//
// Reads that find nothing are cached too. The absent result (a typed nil or
// empty slice) is stored under the same key a hit would use, so a missing row
// costs one query per transaction instead of one per call.
package uowcache
