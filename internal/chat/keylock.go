package chat

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyLock serializes anchor writes per conversation key. The clear+insert
// pair inside AppendAndAnchor must not interleave for the same key: under
// read-committed isolation two concurrent transactions can each clear zero
// rows and both insert an anchored message. Keys hash onto a fixed set of
// shards, so unrelated conversations rarely contend and the lock table
// never grows.
type keyLock struct {
	shards [lockShards]sync.Mutex
}

func (l *keyLock) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.shards[h.Sum32()%lockShards]
}

// Lock acquires the shard for key and returns the release func. Callers
// defer it immediately so the lock is released on every exit path.
func (l *keyLock) Lock(key string) func() {
	m := l.shard(key)
	m.Lock()
	return m.Unlock
}
