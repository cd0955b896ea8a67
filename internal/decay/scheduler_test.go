package decay

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastersh0w/citadel/internal/config"
	"github.com/mastersh0w/citadel/internal/ledger"
	"github.com/mastersh0w/citadel/internal/models"
)

func sweepFixture(t *testing.T) (*ledger.Ledger, *config.Store) {
	t.Helper()
	cfg := config.DefaultThreatConfig()
	cfg.DecayPerSecond = 1.0
	configs := config.NewStore(cfg)
	return ledger.New(), configs
}

func TestSweepEvictsIdleActors(t *testing.T) {
	l, configs := sweepFixture(t)
	s := NewScheduler(l, configs, time.Second, 10*time.Minute)
	t0 := time.Now().UTC()

	_, err := l.Record("idle", "scope", models.ActionChannelCreate, configs.Get("scope"), t0)
	require.NoError(t, err)
	_, err = l.Record("busy", "scope", models.ActionChannelDelete, configs.Get("scope"), t0)
	require.NoError(t, err)

	// First sweep: both scores have fully decayed (5 and 10 points at
	// 1/s), but neither has been idle past retention yet.
	res := s.SweepOnce(t0.Add(time.Minute))
	assert.Equal(t, 2, res.Scanned)
	assert.Zero(t, res.Evicted)
	assert.Equal(t, 2, l.Len())

	// The busy actor acts again; the idle one stays silent past the
	// retention window and gets evicted.
	_, err = l.Record("busy", "scope", models.ActionChannelDelete, configs.Get("scope"), t0.Add(11*time.Minute))
	require.NoError(t, err)

	sweepAt := t0.Add(11*time.Minute + 5*time.Second)
	res = s.SweepOnce(sweepAt)
	assert.Equal(t, 1, res.Evicted)
	assert.Equal(t, 1, l.Len())
	assert.InDelta(t, 5.0, l.Score("busy", "scope", 1.0, sweepAt), 1e-9)
}

func TestSweepKeepsNonzeroScores(t *testing.T) {
	l, configs := sweepFixture(t)
	s := NewScheduler(l, configs, time.Second, time.Minute)
	t0 := time.Now().UTC()

	// 10 points at 1/s survives a sweep 5s later with score 5.
	_, err := l.Record("actor", "scope", models.ActionChannelDelete, configs.Get("scope"), t0)
	require.NoError(t, err)

	res := s.SweepOnce(t0.Add(5 * time.Second))
	assert.Zero(t, res.Evicted)
	assert.InDelta(t, 5.0, l.Score("actor", "scope", 1.0, t0.Add(5*time.Second)), 1e-9)
}

func TestSweepUsesPerScopeDecayRate(t *testing.T) {
	l, configs := sweepFixture(t)
	slow := config.DefaultThreatConfig()
	slow.DecayPerSecond = 0.2
	configs.Set("slow-scope", slow)

	s := NewScheduler(l, configs, time.Second, time.Hour)
	t0 := time.Now().UTC()

	_, err := l.Record("actor", "slow-scope", models.ActionChannelDelete, slow, t0)
	require.NoError(t, err)

	// 10 points at 0.2/s leaves 8 after 10s.
	s.SweepOnce(t0.Add(10 * time.Second))
	assert.InDelta(t, 8.0, l.Score("actor", "slow-scope", 0.2, t0.Add(10*time.Second)), 1e-9)
}

func TestHeartbeatFiresEverySweep(t *testing.T) {
	l, configs := sweepFixture(t)
	s := NewScheduler(l, configs, time.Second, time.Minute)

	var beats atomic.Int64
	s.OnSweep(func() { beats.Add(1) })

	now := time.Now().UTC()
	s.SweepOnce(now)
	s.SweepOnce(now.Add(time.Second))
	assert.Equal(t, int64(2), beats.Load())
}

func TestStartStop(t *testing.T) {
	l, configs := sweepFixture(t)
	s := NewScheduler(l, configs, 5*time.Millisecond, time.Minute)

	swept := make(chan struct{}, 1)
	s.OnSweep(func() {
		select {
		case swept <- struct{}{}:
		default:
		}
	})

	s.Start()
	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler never swept")
	}
	s.Stop()
}
