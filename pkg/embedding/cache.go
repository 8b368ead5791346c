package embedding

import (
	"container/list"
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores embedding vectors by key. Implementations are best-effort:
// a miss is returned for any failure.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration)
}

// MakeKey derives the cache key for a (model, text) pair.
func MakeKey(model, text string) string {
	h := md5.Sum([]byte(model + "|" + text))
	return "emb:" + hex.EncodeToString(h[:])
}

// LocalLRU is an in-process LRU cache with per-entry TTL.
type LocalLRU struct {
	mu      sync.Mutex
	maxSize int
	lruList *list.List // front = most recently used
	entries map[string]*list.Element
}

type lruEntry struct {
	key     string
	vec     []float32
	expires time.Time
}

var _ Cache = (*LocalLRU)(nil)

// NewLocalLRU creates an LRU cache holding at most maxSize vectors.
func NewLocalLRU(maxSize int) *LocalLRU {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &LocalLRU{
		maxSize: maxSize,
		lruList: list.New(),
		entries: make(map[string]*list.Element, maxSize),
	}
}

// Get returns the cached vector for key if present and not expired.
func (l *LocalLRU) Get(_ context.Context, key string) ([]float32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, ok := l.entries[key]
	if !ok {
		return nil, false
	}
	ent := elem.Value.(lruEntry)
	if !ent.expires.After(time.Now()) {
		l.lruList.Remove(elem)
		delete(l.entries, key)
		return nil, false
	}
	l.lruList.MoveToFront(elem)
	return ent.vec, true
}

// Set stores a vector under key with the given TTL, evicting the least
// recently used entry when the cache is full.
func (l *LocalLRU) Set(_ context.Context, key string, vec []float32, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ent := lruEntry{key: key, vec: vec, expires: time.Now().Add(ttl)}
	if elem, ok := l.entries[key]; ok {
		elem.Value = ent
		l.lruList.MoveToFront(elem)
		return
	}

	elem := l.lruList.PushFront(ent)
	l.entries[key] = elem
	if l.lruList.Len() > l.maxSize {
		l.evictOldest()
	}
}

// evictOldest removes the least recently used entry.
// Must be called with l.mu held.
func (l *LocalLRU) evictOldest() {
	back := l.lruList.Back()
	if back == nil {
		return
	}
	ent := back.Value.(lruEntry)
	l.lruList.Remove(back)
	delete(l.entries, ent.key)
}

// RedisCache is a shared cache tier backed by Redis. Vectors are stored as
// little-endian float32 bytes.
type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client}, nil
}

// Get returns the cached vector for key, or a miss on any Redis error or
// malformed value.
func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool) {
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	vec, ok := decodeVector(b)
	return vec, ok
}

// Set stores a vector under key with the given TTL. Failures are ignored.
func (r *RedisCache) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) {
	_ = r.client.Set(ctx, key, encodeVector(vec), ttl).Err()
}

// Close releases the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, bool) {
	if len(b)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, true
}
