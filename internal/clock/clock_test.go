package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowNsNonDecreasing(t *testing.T) {
	c := New()

	prev := c.NowNs()
	require.GreaterOrEqual(t, prev, int64(0))
	for i := 0; i < 10000; i++ {
		now := c.NowNs()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestNowNsTracksElapsedTime(t *testing.T) {
	c := New()

	before := c.NowNs()
	time.Sleep(20 * time.Millisecond)
	after := c.NowNs()

	assert.GreaterOrEqual(t, after-before, int64(20*time.Millisecond))
}

func TestConcurrentReadersShareEpoch(t *testing.T) {
	c := New()
	epoch := c.Epoch()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				_ = c.NowNs()
			}
		}()
	}
	wg.Wait()

	assert.True(t, epoch.Equal(c.Epoch()))
}

func TestEpochIsConstructionTime(t *testing.T) {
	before := time.Now()
	c := New()
	after := time.Now()

	assert.False(t, c.Epoch().Before(before))
	assert.False(t, c.Epoch().After(after))
}
