package platform

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanExecutorPoolSizeFloor(t *testing.T) {
	b := NewBanExecutor("token", 0)
	require.Len(t, b.clients, 1)
	assert.Same(t, b.clients[0], b.client())
	assert.Same(t, b.clients[0], b.client())
}

func TestClientRotationCyclesThroughPool(t *testing.T) {
	b := NewBanExecutor("token", 3)

	seen := make(map[int]int)
	for i := 0; i < 9; i++ {
		c := b.client()
		for idx, pooled := range b.clients {
			if c == pooled {
				seen[idx]++
			}
		}
	}
	for idx := range b.clients {
		assert.Equal(t, 3, seen[idx], "client %d", idx)
	}
}

func TestClientRotationIsConcurrencySafe(t *testing.T) {
	b := NewBanExecutor("token", 4)

	// Parallel resolves on distinct cases each grab a client; the race
	// detector must stay quiet and every result must come from the pool.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c := b.client()
				found := false
				for _, pooled := range b.clients {
					if c == pooled {
						found = true
						break
					}
				}
				assert.True(t, found)
			}
		}()
	}
	wg.Wait()
}
