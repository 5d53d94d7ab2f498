package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

func newTestScheduler(t *testing.T, feed domain.OpportunityFeed, exec *Executor) *Scheduler {
	t.Helper()
	cfg := SchedulerConfig{
		ScanInterval:       10 * time.Millisecond,
		FeedTimeout:        time.Second,
		TradeTimeout:       time.Second,
		MaxConcurrentUsers: 4,
	}
	return NewScheduler(cfg, NewSessionRegistry(), feed, exec, testLogger(t))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSchedulerExecutesForEnrolledUser(t *testing.T) {
	buy := &fakeGateway{name: "binance"}
	sell := &fakeGateway{name: "kraken"}
	store := &memTradeStore{}
	exec := newTestExecutor(t, buy, sell, store, nil)
	feed := &staticFeed{opps: []domain.Opportunity{btcOpportunity()}}

	sched := newTestScheduler(t, feed, exec)
	sched.EnableUser(42, []domain.Strategy{{
		Active:       true,
		MinProfitPct: 1.0,
		Exchanges:    []string{"binance", "kraken"},
		MaxAmount:    0.01,
	}}, testCreds())

	sched.Start(context.Background())
	defer sched.Stop()

	waitFor(t, func() bool { return len(store.all()) >= 1 })

	stats := sched.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, 1, stats.ActiveUsers)
	assert.GreaterOrEqual(t, stats.TradesExecuted, int64(1))
	require.NotEmpty(t, sched.RecentTrades(42))
}

func TestSchedulerStartTwiceIsNoOp(t *testing.T) {
	feed := &staticFeed{}
	sched := newTestScheduler(t, feed, newTestExecutor(t, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"}, &memTradeStore{}, nil))

	sched.Start(context.Background())
	sched.Start(context.Background())
	assert.True(t, sched.Running())
	sched.Stop()
	assert.False(t, sched.Running())
}

func TestSchedulerStopThenRestart(t *testing.T) {
	feed := &staticFeed{}
	sched := newTestScheduler(t, feed, newTestExecutor(t, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"}, &memTradeStore{}, nil))

	sched.Start(context.Background())
	waitFor(t, func() bool { return sched.Stats().Cycles >= 1 })
	sched.Stop()
	require.False(t, sched.Running())

	// Stop must leave the loop fully exited so a restart works cleanly.
	sched.Start(context.Background())
	assert.True(t, sched.Running())
	sched.Stop()
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	feed := &staticFeed{}
	sched := newTestScheduler(t, feed, newTestExecutor(t, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"}, &memTradeStore{}, nil))

	sched.Stop()
	sched.Start(context.Background())
	sched.Stop()
	sched.Stop()
	assert.False(t, sched.Running())
}

func TestSchedulerDisableUserExcludesFromNextCycle(t *testing.T) {
	store := &memTradeStore{}
	exec := newTestExecutor(t, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"}, store, nil)
	feed := &staticFeed{opps: []domain.Opportunity{btcOpportunity()}}

	sched := newTestScheduler(t, feed, exec)
	sched.EnableUser(42, []domain.Strategy{{
		Active:       true,
		MinProfitPct: 1.0,
		Exchanges:    []string{"binance", "kraken"},
		MaxAmount:    0.01,
	}}, testCreds())

	sched.Start(context.Background())
	waitFor(t, func() bool { return len(store.all()) >= 1 })

	require.True(t, sched.DisableUser(42))
	assert.False(t, sched.UserActive(42))
	assert.Nil(t, sched.RecentTrades(42))

	sched.Stop()
	assert.Equal(t, 0, sched.Stats().ActiveUsers)
}

func TestSchedulerDisableUnknownUser(t *testing.T) {
	feed := &staticFeed{}
	sched := newTestScheduler(t, feed, newTestExecutor(t, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"}, &memTradeStore{}, nil))
	assert.False(t, sched.DisableUser(7))
}

func TestSchedulerSurvivesFeedFailure(t *testing.T) {
	feed := &staticFeed{err: errors.New("redis unreachable")}
	sched := newTestScheduler(t, feed, newTestExecutor(t, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"}, &memTradeStore{}, nil))
	sched.EnableUser(42, []domain.Strategy{{Active: true, MinProfitPct: 1.0, Exchanges: []string{"binance", "kraken"}, MaxAmount: 0.01}}, testCreds())

	sched.Start(context.Background())
	waitFor(t, func() bool { return sched.Stats().Cycles >= 3 })
	sched.Stop()

	assert.True(t, feed.calls.Load() >= 3)
	assert.Zero(t, sched.Stats().TradesExecuted)
}

func TestSchedulerIsolatesUserFailures(t *testing.T) {
	// User 1 has no kraken credentials and fails every attempt; user 2 trades.
	store := &memTradeStore{}
	exec := newTestExecutor(t, &fakeGateway{name: "binance"}, &fakeGateway{name: "kraken"}, store, nil)
	feed := &staticFeed{opps: []domain.Opportunity{btcOpportunity()}}

	strategies := []domain.Strategy{{
		Active:       true,
		MinProfitPct: 1.0,
		Exchanges:    []string{"binance", "kraken"},
		MaxAmount:    0.01,
	}}

	sched := newTestScheduler(t, feed, exec)
	badCreds := testCreds()
	delete(badCreds, "kraken")
	sched.EnableUser(1, strategies, badCreds)
	sched.EnableUser(2, strategies, testCreds())

	sched.Start(context.Background())
	waitFor(t, func() bool {
		for _, tr := range store.all() {
			if tr.UserID == 2 {
				return true
			}
		}
		return false
	})
	sched.Stop()

	stats := sched.Stats()
	assert.GreaterOrEqual(t, stats.SkippedAttempts, int64(1))
	for _, tr := range store.all() {
		assert.Equal(t, int64(2), tr.UserID)
	}
}
