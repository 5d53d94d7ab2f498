package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupSuppressesWithinTTL(t *testing.T) {
	d := NewDedup(time.Hour)
	key := tradeKey(42, testMatch())

	assert.False(t, d.IsDuplicate(key))
	assert.True(t, d.IsDuplicate(key))
	assert.False(t, d.IsDuplicate(tradeKey(7, testMatch())), "different user is a different key")
}

func TestDedupExpires(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	key := tradeKey(42, testMatch())

	assert.False(t, d.IsDuplicate(key))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.IsDuplicate(key))
}

func TestDedupCleanup(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	d.IsDuplicate("a")
	d.IsDuplicate("b")
	time.Sleep(20 * time.Millisecond)
	d.Cleanup()
	assert.Empty(t, d.seen)
}
