package cache

import (
	"context"
	"sync"
	"time"

	"ai-accelerator-be/internal/apperror"

	gocache "github.com/patrickmn/go-cache"
)

type LocalStore struct {
	cache *gocache.Cache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalStore(defaultTTL time.Duration) *LocalStore {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &LocalStore{
		cache: gocache.New(defaultTTL, 10*time.Minute),
		locks: make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex guarding writes for a single key. Set and Delete
// for the same key serialize on it so check-then-write stays atomic.
func (s *LocalStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	if x, found := s.cache.Get(key); found {
		return x.([]byte), nil
	}
	return nil, apperror.New(apperror.KindCacheKeyNotFound, "cache key not found: "+key)
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if _, found := s.cache.Get(key); found {
		return apperror.New(apperror.KindCacheKeyExists, "cache key already exists: "+key)
	}
	s.cache.Set(key, value, gocache.DefaultExpiration)
	return nil
}

func (s *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	_, found := s.cache.Get(key)
	return found, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if _, found := s.cache.Get(key); !found {
		return apperror.New(apperror.KindCacheKeyNotFound, "cache key not found: "+key)
	}
	s.cache.Delete(key)
	return nil
}

func (s *LocalStore) Close() error {
	s.cache.Flush()
	return nil
}
