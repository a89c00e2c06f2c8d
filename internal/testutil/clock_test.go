package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClockAdvances(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewStepClock(start, time.Second)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(time.Second), c.Now())
	assert.Equal(t, start.Add(2*time.Second), c.Now())
}

func TestStepClockReset(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewStepClock(start, time.Minute)

	c.Now()
	c.Now()
	c.Reset()
	assert.Equal(t, start, c.Now())
}

func TestStepClockConcurrentNowsAreDistinct(t *testing.T) {
	c := NewStepClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)

	const n = 50
	var wg sync.WaitGroup
	results := make(chan time.Time, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- c.Now()
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[time.Time]bool, n)
	for ts := range results {
		assert.False(t, seen[ts], "duplicate timestamp %v", ts)
		seen[ts] = true
	}
}
