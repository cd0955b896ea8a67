package detector

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mastersh0w/citadel/internal/ledger"
)

func TestCrossedIsInclusive(t *testing.T) {
	assert.False(t, Crossed(49.999, 50))
	assert.True(t, Crossed(50, 50))
	assert.True(t, Crossed(50.001, 50))
}

func TestTryAcquireSingleWinner(t *testing.T) {
	d := New()
	key := ledger.Key{ScopeID: "scope", ActorID: "actor"}

	const goroutines = 50
	var wins int64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if d.TryAcquire(key) {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	d := New()
	key := ledger.Key{ScopeID: "scope", ActorID: "actor"}

	assert.True(t, d.TryAcquire(key))
	assert.False(t, d.TryAcquire(key))

	d.Release(key)
	assert.True(t, d.TryAcquire(key))
}

func TestPendingCase(t *testing.T) {
	d := New()
	key := ledger.Key{ScopeID: "scope", ActorID: "actor"}

	_, held := d.PendingCase(key)
	assert.False(t, held)

	d.TryAcquire(key)
	id, held := d.PendingCase(key)
	assert.True(t, held)
	assert.Empty(t, id) // acquired but not yet committed

	d.Commit(key, "case-1")
	id, held = d.PendingCase(key)
	assert.True(t, held)
	assert.Equal(t, "case-1", id)
}

func TestDistinctKeysDoNotInterfere(t *testing.T) {
	d := New()
	a := ledger.Key{ScopeID: "scope", ActorID: "a"}
	b := ledger.Key{ScopeID: "scope", ActorID: "b"}

	assert.True(t, d.TryAcquire(a))
	assert.True(t, d.TryAcquire(b))
}

func TestPrimeRestoresLatch(t *testing.T) {
	d := New()
	key := ledger.Key{ScopeID: "scope", ActorID: "actor"}

	d.Prime(key, "case-from-disk")
	assert.False(t, d.TryAcquire(key))

	id, held := d.PendingCase(key)
	assert.True(t, held)
	assert.Equal(t, "case-from-disk", id)
}
