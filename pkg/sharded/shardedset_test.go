package sharded

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestShardedSetBasics(t *testing.T) {
	s := NewShardedSet()

	if s.Has("a") {
		t.Error("empty set should not contain 'a'")
	}

	s.Store("a")
	s.Store("b/c")
	s.Store("a") // duplicate

	if !s.Has("a") || !s.Has("b/c") {
		t.Error("set is missing stored keys")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	keys := s.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b/c" {
		t.Errorf("Keys = %v, want [a b/c]", keys)
	}
}

func TestShardedSetConcurrent(t *testing.T) {
	s := NewShardedSet()
	const goroutines = 16
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				key := fmt.Sprintf("dir-%d/file-%d", g, i)
				s.Store(key)
				if !s.Has(key) {
					t.Errorf("key %s not visible after Store", key)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := s.Len(); got != goroutines*perGoroutine {
		t.Errorf("Len = %d, want %d", got, goroutines*perGoroutine)
	}
}
