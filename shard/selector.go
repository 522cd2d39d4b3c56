package shard

import "hash/fnv"

/*
Selector decides which shard owns a key. A key must always map to the same
shard for the lifetime of the cache.
*/
type Selector interface {
	Select(key string, shards []*Shard) *Shard
}

// HashSelector spreads keys with FNV-1a.
type HashSelector struct{}

func (HashSelector) Select(key string, shards []*Shard) *Shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return shards[h.Sum32()%uint32(len(shards))]
}
