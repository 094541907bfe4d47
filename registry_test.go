package main

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore delays loads so concurrent resolvers overlap.
type slowStore struct {
	fakeStore
	delay time.Duration
}

func (s *slowStore) LoadMatch(id string) (*MatchRecord, error) {
	time.Sleep(s.delay)
	return s.fakeStore.LoadMatch(id)
}

func TestResolveIsSingleFlight(t *testing.T) {
	cfg := testConfig()
	store := &slowStore{delay: 20 * time.Millisecond}
	reg := newRegistry(cfg, store, &fakePrizes{})

	const callers = 16
	sessions := make([]*Session, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = reg.resolve("shared")
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, sessions[0], sessions[i], "every caller observes the same session instance")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.loads, "exactly one store load per unseen match id")
}

func TestResolveHydratesFromStore(t *testing.T) {
	cfg := testConfig()
	sol := solvedGrid()
	grid := solvedGrid()
	grid[0][0] = 0

	store := &fakeStore{record: &MatchRecord{
		ID:           "m1",
		Mode:         ModeSimultaneous,
		Status:       recordWaiting,
		Grid:         grid,
		Solution:     &sol,
		HintsAllowed: 5,
		Prize:        100,
	}}
	reg := newRegistry(cfg, store, &fakePrizes{})

	s := reg.resolve("m1")

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Equal(t, StatusWaiting, s.status)
	assert.Equal(t, grid, s.grid)
	require.NotNil(t, s.solution)
	assert.Equal(t, 5, s.settings.HintsAllowed)
	assert.Equal(t, 100, s.settings.Prize)
}

func TestResolveDegradesOnStoreFailure(t *testing.T) {
	cfg := testConfig()
	store := &fakeStore{loadErr: errors.New("disk on fire")}
	reg := newRegistry(cfg, store, &fakePrizes{})

	s := reg.resolve("m1")
	require.NotNil(t, s)
	assert.Equal(t, StatusWaiting, s.statusNow())
	assert.Equal(t, ModeSimultaneous, s.mode)
}

func TestResolveDefaultsOnMissingRecord(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry(cfg, &fakeStore{}, &fakePrizes{})

	s := reg.resolve("unseen")
	require.NotNil(t, s)

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Equal(t, StatusWaiting, s.status)
	assert.Equal(t, cfg.defaultHints, s.settings.HintsAllowed)
}

func TestRemoveDropsSession(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry(cfg, &fakeStore{}, &fakePrizes{})

	first := reg.resolve("m1")
	reg.remove("m1")
	second := reg.resolve("m1")

	assert.NotSame(t, first, second)
}

func TestResolveIsStableAcrossCalls(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry(cfg, &fakeStore{}, &fakePrizes{})

	assert.Same(t, reg.resolve("m1"), reg.resolve("m1"))
}

func TestNewMatchIDShape(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry(cfg, &fakeStore{}, &fakePrizes{})

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := reg.newMatchID()
		require.Len(t, id, 8)
		for _, r := range id {
			assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'))
		}
		assert.False(t, seen[id])
		seen[id] = true
	}
}
