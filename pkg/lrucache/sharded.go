package lrucache

import (
	"hash/maphash"
	"sync"
)

// DefaultMaxEntries is the bound used when a Store is created with a
// non-positive size, matching the "default 1000" from the cache store's
// contract.
const DefaultMaxEntries = 1000

// DefaultShards is the shard count used when none is supplied.
const DefaultShards = 64

// Entry is one key/value pair as returned by Store.Entries.
type Entry[V any] struct {
	Key   string
	Value V
}

// Store is the bounded, concurrency-safe keyed store the lookup controller
// consults as its cache (the "Cache Store" collaborator). It shards its
// backing LRUs by key hash so lookups for unrelated hostnames rarely
// contend on the same lock, the same tradeoff the teacher's ShardedLRU makes
// for cached DNS responses. Eviction is LRU and not otherwise observable.
type Store[V any] struct {
	seed  maphash.Seed
	shard []*shardedLRU[V]
	mask  uint64
}

type shardedLRU[V any] struct {
	mu  sync.Mutex
	lru *lru[string, V]
}

// NewStore creates a Store bounded to approximately maxEntries total,
// split across shards buckets (rounded down to a power of two). onEvict,
// when non-nil, runs under the owning shard's lock whenever an entry leaves
// the store: displaced by Set to make room for a new one, removed by Del,
// or dropped by Clean. It must not call back into the Store.
func NewStore[V any](maxEntries, shards int, onEvict func(key string, v V)) *Store[V] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if shards <= 0 {
		shards = DefaultShards
	}
	shards = floorPow2(shards)

	perShard := maxEntries / shards
	for perShard < 1 && shards > 1 {
		shards /= 2
		perShard = maxEntries / shards
	}
	if perShard < 1 {
		perShard = 1
	}

	s := &Store[V]{
		seed:  maphash.MakeSeed(),
		shard: make([]*shardedLRU[V], shards),
		mask:  uint64(shards - 1),
	}
	for i := range s.shard {
		s.shard[i] = &shardedLRU[V]{lru: newLRU[string, V](perShard, onEvict)}
	}
	return s
}

func floorPow2(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

func (s *Store[V]) pick(key string) *shardedLRU[V] {
	h := maphash.String(s.seed, key)
	return s.shard[h&s.mask]
}

// Get returns the value stored for key, if any.
func (s *Store[V]) Get(key string) (v V, ok bool) {
	sh := s.pick(key)
	sh.mu.Lock()
	v, ok = sh.lru.Get(key)
	sh.mu.Unlock()
	return
}

// Set upserts key, evicting the shard's oldest entry if it is full.
func (s *Store[V]) Set(key string, v V) {
	sh := s.pick(key)
	sh.mu.Lock()
	sh.lru.Add(key, v)
	sh.mu.Unlock()
}

// Del removes key, if present.
func (s *Store[V]) Del(key string) {
	sh := s.pick(key)
	sh.mu.Lock()
	sh.lru.Del(key)
	sh.mu.Unlock()
}

// Clean removes every entry for which f returns true and reports the count
// removed. Used by a background janitor to drop long-expired entries.
func (s *Store[V]) Clean(f func(key string, v V) bool) (removed int) {
	for _, sh := range s.shard {
		sh.mu.Lock()
		removed += sh.lru.Clean(f)
		sh.mu.Unlock()
	}
	return
}

// Entries takes a consistent snapshot of every key/value pair currently
// held. It is used at teardown to serialize the whole cache and is not on
// any hot path, so a full copy under each shard's lock is acceptable.
func (s *Store[V]) Entries() []Entry[V] {
	out := make([]Entry[V], 0, s.Len())
	for _, sh := range s.shard {
		sh.mu.Lock()
		for _, kv := range sh.lru.Snapshot() {
			out = append(out, Entry[V]{Key: kv.key, Value: kv.v})
		}
		sh.mu.Unlock()
	}
	return out
}

// Len returns the total number of entries across all shards.
func (s *Store[V]) Len() int {
	n := 0
	for _, sh := range s.shard {
		sh.mu.Lock()
		n += sh.lru.Len()
		sh.mu.Unlock()
	}
	return n
}
