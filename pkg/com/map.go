package com

import (
	"errors"
	"sync"
)

// Map defines a concurrent-safe map structure.
// Keys that are empty (zero values) are never found.
type Map[K comparable, V any] struct {
	m  map[K]V
	mu sync.Mutex
}

var ErrNotFound = errors.New("not found")

func NewMap[K comparable, V any]() *Map[K, V] { return &Map[K, V]{m: make(map[K]V, 10)} }

func (m *Map[K, _]) Has(key K) bool     { _, err := m.Find(key); return err == nil }
func (m *Map[_, _]) IsEmpty() bool      { m.mu.Lock(); defer m.mu.Unlock(); return len(m.m) == 0 }
func (m *Map[_, _]) Len() int           { m.mu.Lock(); defer m.mu.Unlock(); return len(m.m) }
func (m *Map[K, V]) Put(key K, value V) { m.mu.Lock(); m.m[key] = value; m.mu.Unlock() }

// PutIfAbsent stores the value only if there is nothing under the key.
// Returns true when the value was stored.
func (m *Map[K, V]) PutIfAbsent(key K, value V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.m[key]; ok {
		return false
	}
	m.m[key] = value
	return true
}

// Swap replaces an existing value in place and returns the previous one.
// Nothing is stored if the key is absent.
func (m *Map[K, V]) Swap(key K, value V) (old V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok = m.m[key]; ok {
		m.m[key] = value
	}
	return
}

// Pop removes a value from the map and returns it.
func (m *Map[K, V]) Pop(key K) (v V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = m.m[key]; ok {
		delete(m.m, key)
	}
	return
}

// Update calls fn with the value under the lock.
func (m *Map[K, V]) Update(key K, fn func(V)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	if ok {
		fn(v)
	}
	return ok
}

// Find searches for the first match by a specified key value,
// returns ErrNotFound otherwise.
func (m *Map[K, V]) Find(key K) (value V, err error) {
	var empty K
	if key == empty {
		return value, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.m[key]; ok {
		return c, nil
	}
	return value, ErrNotFound
}

// FindBy searches the first key-value with the provided predicate function.
func (m *Map[K, V]) FindBy(fn func(v V) bool) (value V, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.m {
		if fn(w) {
			return w, nil
		}
	}
	return value, ErrNotFound
}

// ForEach processes every element with the provided callback function.
// The callback runs under the lock, so it should not call the map.
func (m *Map[K, V]) ForEach(fn func(v V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.m {
		fn(w)
	}
}


// Drain removes everything from the map and returns the removed values.
func (m *Map[K, V]) Drain() []V {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]V, 0, len(m.m))
	for k, v := range m.m {
		out = append(out, v)
		delete(m.m, k)
	}
	return out
}
