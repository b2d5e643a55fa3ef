package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_DefaultsToToday(t *testing.T) {
	c := NewFixedClock(time.Time{})
	assert.Equal(t, Today, c.Now())
	assert.Equal(t, Today, c.Now(), "Now does not advance")
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	c := NewFixedClock(Today)
	assert.Equal(t, Today.Add(time.Hour), c.Advance(time.Hour))

	later := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestFixedClock_ConcurrentAdvance(t *testing.T) {
	c := NewFixedClock(Today)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
		}()
	}
	wg.Wait()
	assert.Equal(t, Today.Add(100*time.Second), c.Now())
}

func TestFixedIDGenerator(t *testing.T) {
	assert.Equal(t, "test-request", NewFixedIDGenerator("").Generate())

	g := NewFixedIDGenerator("req")
	for i := 0; i < 3; i++ {
		assert.Equal(t, "req", g.Generate())
	}
}

func TestSeedLedger(t *testing.T) {
	s := OpenStore(t)
	SeedLedger(t, s)

	var n int
	err := s.DB().QueryRow(`SELECT COUNT(*) FROM expenses WHERE user_id = 'u1'`).Scan(&n)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
}
