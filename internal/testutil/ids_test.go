package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("compile-123")

	assert.Equal(t, "compile-123", gen.Generate())
	assert.Equal(t, "compile-123", gen.Generate())
}

func TestFixedIDGenerator_EmptyIDDefault(t *testing.T) {
	assert.Equal(t, "test-compilation", NewFixedIDGenerator("").Generate())
}

func TestSequenceIDGenerator_IncrementsAndResets(t *testing.T) {
	gen := NewSequenceIDGenerator()

	assert.Equal(t, "compilation-1", gen.Generate())
	assert.Equal(t, "compilation-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "compilation-1", gen.Generate())
}

func TestSequenceIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewSequenceIDGenerator()
	const goroutines = 20
	const calls = 50

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls, "every ID is unique")
}
