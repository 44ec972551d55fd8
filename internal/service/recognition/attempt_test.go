package recognition

import (
	"sync"
	"testing"
)

func TestGenerator_Next(t *testing.T) {
	gen := NewGenerator()

	if id := gen.Next("sess-1"); id != "sess-1-attempt-1" {
		t.Errorf("expected 'sess-1-attempt-1', got %s", id)
	}
	if id := gen.Next("sess-1"); id != "sess-1-attempt-2" {
		t.Errorf("expected 'sess-1-attempt-2', got %s", id)
	}
	if id := gen.Next("sess-2"); id != "sess-2-attempt-3" {
		t.Errorf("expected 'sess-2-attempt-3', got %s", id)
	}
}

func TestGenerator_ThreadSafety(t *testing.T) {
	gen := NewGenerator()
	numGoroutines := 50
	perGoroutine := 20

	var wg sync.WaitGroup
	results := make(chan string, numGoroutines*perGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- gen.Next("sess")
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for id := range results {
		if seen[id] {
			t.Errorf("duplicate attempt ID generated: %s", id)
		}
		seen[id] = true
	}
	if len(seen) != numGoroutines*perGoroutine {
		t.Errorf("expected %d unique IDs, got %d", numGoroutines*perGoroutine, len(seen))
	}
}
