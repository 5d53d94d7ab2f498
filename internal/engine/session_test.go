package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

func TestSessionRecentTradesBounded(t *testing.T) {
	sess := NewSession(1, nil, nil)
	for i := 0; i < recentTradeCap+5; i++ {
		sess.RecordTrade(domain.Trade{ID: fmt.Sprintf("t-%d", i)})
	}

	recent := sess.RecentTrades()
	require.Len(t, recent, recentTradeCap)
	// Oldest entries were evicted; the newest is last.
	assert.Equal(t, "t-5", recent[0].ID)
	assert.Equal(t, fmt.Sprintf("t-%d", recentTradeCap+4), recent[len(recent)-1].ID)
}

func TestSessionRecentTradesReturnsCopy(t *testing.T) {
	sess := NewSession(1, nil, nil)
	sess.RecordTrade(domain.Trade{ID: "a"})

	got := sess.RecentTrades()
	got[0].ID = "mutated"
	assert.Equal(t, "a", sess.RecentTrades()[0].ID)
}

func TestRegistryAddReplaceRemove(t *testing.T) {
	reg := NewSessionRegistry()
	assert.Zero(t, reg.Len())
	assert.Nil(t, reg.Get(1))

	reg.Add(NewSession(1, nil, nil))
	reg.Add(NewSession(2, nil, nil))
	assert.Equal(t, 2, reg.Len())

	// Re-enrolling replaces the session in place.
	replacement := NewSession(1, []domain.Strategy{{ID: 9}}, nil)
	reg.Add(replacement)
	assert.Equal(t, 2, reg.Len())
	require.NotNil(t, reg.Get(1))
	assert.Equal(t, int64(9), reg.Get(1).Strategies[0].ID)

	assert.True(t, reg.Remove(1))
	assert.False(t, reg.Remove(1))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistrySnapshotIsolated(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Add(NewSession(1, nil, nil))

	snap := reg.Snapshot()
	require.Len(t, snap, 1)

	// Mutating the registry after the snapshot leaves the snapshot intact.
	reg.Remove(1)
	assert.Len(t, snap, 1)
	assert.Zero(t, reg.Len())
}
