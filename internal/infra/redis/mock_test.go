package redis

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// memRedis is a small in-memory RedisClient. Keys with a positive TTL
// disappear once it runs out; drop removes a key immediately.
type memRedis struct {
	mu       sync.Mutex
	data     map[string]string
	ttl      map[string]time.Duration
	expireAt map[string]time.Time
	incrErr  error
	refresh  int
}

func newMemRedis() *memRedis {
	return &memRedis{
		data:     map[string]string{},
		ttl:      map[string]time.Duration{},
		expireAt: map[string]time.Time{},
	}
}

func (m *memRedis) drop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// expire must be called with mu held.
func (m *memRedis) expire(key string) {
	if at, ok := m.expireAt[key]; ok && !time.Now().Before(at) {
		delete(m.data, key)
		delete(m.expireAt, key)
	}
}

// setTTL must be called with mu held.
func (m *memRedis) setTTL(key string, d time.Duration) {
	m.ttl[key] = d
	if d > 0 {
		m.expireAt[key] = time.Now().Add(d)
	} else {
		delete(m.expireAt, key)
	}
}

func (m *memRedis) Ping(ctx context.Context) error { return nil }

func (m *memRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expire(key)
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	m.setTTL(key, expiration)
	return true, nil
}

func (m *memRedis) Incr(ctx context.Context, key string) (int64, error) {
	if m.incrErr != nil {
		return 0, m.incrErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expire(key)
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setTTL(key, expiration)
	return nil
}

func (m *memRedis) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expire(key)
	if m.data[key] != token {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memRedis) CompareAndExpire(ctx context.Context, key, token string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh++
	m.expire(key)
	if m.data[key] != token {
		return false, nil
	}
	m.setTTL(key, expiration)
	return true, nil
}

func (m *memRedis) Close() error { return nil }
