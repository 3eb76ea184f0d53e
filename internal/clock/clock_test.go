package clock

import (
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	c := NewSystem(tokyo)
	c.now = func() time.Time { return time.Date(2025, 10, 31, 20, 0, 0, 0, time.UTC) }

	assert.Equal(t, civil.Date{Year: 2025, Month: time.November, Day: 1}, c.Today())
}

func TestFixedAdvance(t *testing.T) {
	c := NewFixed(civil.Date{Year: 2025, Month: time.November, Day: 1})

	assert.Equal(t, civil.Date{Year: 2025, Month: time.November, Day: 6}, c.Advance(5))
	assert.Equal(t, civil.Date{Year: 2025, Month: time.November, Day: 6}, c.Today())

	c.Set(civil.Date{Year: 2026, Month: time.January, Day: 2})
	assert.Equal(t, civil.Date{Year: 2026, Month: time.January, Day: 2}, c.Today())
}

func TestFixedConcurrentUse(t *testing.T) {
	c := NewFixed(civil.Date{Year: 2025, Month: time.November, Day: 1})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(1)
			_ = c.Today()
		}()
	}
	wg.Wait()

	assert.Equal(t, civil.Date{Year: 2025, Month: time.November, Day: 11}, c.Today())
}

func TestParse(t *testing.T) {
	for _, value := range []string{"", "system", "SYSTEM"} {
		c, err := Parse(value, time.UTC)
		require.NoError(t, err)
		assert.IsType(t, &System{}, c, value)
	}

	for _, value := range []string{"fixed:2025-11-01", "FIXED: 2025-11-01", "2025-11-01"} {
		c, err := Parse(value, time.UTC)
		require.NoError(t, err, value)
		assert.Equal(t, civil.Date{Year: 2025, Month: time.November, Day: 1}, c.Today(), value)
	}

	_, err := Parse("fixed:tomorrow", time.UTC)
	assert.Error(t, err)
}
