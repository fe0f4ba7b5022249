package server

import (
	"bytes"
	"encoding/json"
	"maps"
	"sync"

	"cargo-fixture/pkg/protocol"
)

// KVStore holds the JSON values a fixture publishes for its tests. One
// writer and any number of readers may use it concurrently; values are
// always replaced whole.
type KVStore struct {
	mu sync.RWMutex
	m  map[string]json.RawMessage
}

// NewKVStore returns an empty store.
func NewKVStore() *KVStore {
	return &KVStore{m: make(map[string]json.RawMessage)}
}

// Set stores a copy of value under key, replacing any previous value.
func (s *KVStore) Set(key string, value json.RawMessage) {
	v := bytes.Clone(value)
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

// Get returns the value stored under key. The returned slice must not be
// modified.
func (s *KVStore) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Snapshot returns a shallow copy of the store.
func (s *KVStore) Snapshot() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.m)
}

// Len is the number of keys stored.
func (s *KVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// reply answers a GetKeyValue. An absent key leaves Value nil.
func (s *KVStore) reply(key string) protocol.KeyValue {
	v, _ := s.Get(key)
	return protocol.KeyValue{Key: key, Value: v}
}
