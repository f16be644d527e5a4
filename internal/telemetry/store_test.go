package telemetry

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreStartsEmpty(t *testing.T) {
	s := NewStore()
	snap := s.Get(false)

	assert.True(t, math.IsNaN(snap.Solar.Value))
	assert.True(t, math.IsNaN(snap.Grid.Value))
	assert.False(t, snap.Solar.Updated)
	assert.False(t, snap.Grid.Updated)
	assert.True(t, math.IsNaN(snap.Home()))
}

func TestSetAndGet(t *testing.T) {
	s := NewStore()
	now := time.Unix(1000, 0)

	s.Set(Solar, 1.25, now)
	s.Set(Grid, -0.5, now.Add(time.Second))

	snap := s.Get(false)
	assert.Equal(t, 1.25, snap.Solar.Value)
	assert.True(t, snap.Solar.Updated)
	assert.Equal(t, now, snap.Solar.UpdatedAt)
	assert.Equal(t, -0.5, snap.Grid.Value)
	assert.Equal(t, now.Add(time.Second), snap.Grid.UpdatedAt)
	assert.InDelta(t, 0.75, snap.Home(), 1e-9)
	assert.InDelta(t, 0.75, snap.Value(Home), 1e-9)
}

func TestSetNaNIsKept(t *testing.T) {
	s := NewStore()
	s.Set(Solar, 2, time.Now())
	s.Set(Solar, math.NaN(), time.Now())

	snap := s.Get(true)
	assert.True(t, math.IsNaN(snap.Solar.Value))
	assert.True(t, snap.Solar.Updated, "NaN is a valid update")
}

func TestSetHomeIsIgnored(t *testing.T) {
	s := NewStore()
	s.Set(Home, 5, time.Now())

	snap := s.Get(false)
	assert.False(t, snap.Solar.Updated)
	assert.False(t, snap.Grid.Updated)
}

func TestGetClearTwice(t *testing.T) {
	s := NewStore()
	s.Set(Solar, 1, time.Now())
	s.Set(Grid, 2, time.Now())

	first := s.Get(true)
	assert.True(t, first.Solar.Updated)
	assert.True(t, first.Grid.Updated)

	second := s.Get(true)
	assert.False(t, second.Solar.Updated)
	assert.False(t, second.Grid.Updated)
	assert.Equal(t, 1.0, second.Solar.Value, "values survive a clear")

	third := s.Get(true)
	assert.False(t, third.Solar.Updated)
	assert.False(t, third.Grid.Updated)
}

func TestResetRestoresNaN(t *testing.T) {
	s := NewStore()
	s.Set(Grid, 3, time.Now())
	s.Reset()

	snap := s.Get(false)
	assert.True(t, math.IsNaN(snap.Grid.Value))
	assert.False(t, snap.Grid.Updated)
}

// Each completed Set must be observed as updated by exactly one clearing reader.
func TestSingleConsumerOfUpdateFlag(t *testing.T) {
	s := NewStore()

	const readers = 8
	var observed atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	s.Set(Solar, 42, time.Now())

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if s.Get(true).Solar.Updated {
				observed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(1), observed.Load())
}

func TestConcurrentProducersAndConsumer(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for _, c := range []Category{Solar, Grid} {
		wg.Add(1)
		go func(c Category) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				s.Set(c, float64(i), time.Now())
			}
		}(c)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			snap := s.Get(true)
			if snap.Solar.Updated {
				assert.False(t, math.IsNaN(snap.Solar.Value))
			}
		}
	}()

	wg.Wait()
	<-done

	snap := s.Get(false)
	assert.Equal(t, 999.0, snap.Solar.Value)
	assert.Equal(t, 999.0, snap.Grid.Value)
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "solar", Solar.String())
	assert.Equal(t, "home", Home.String())
	assert.Equal(t, "grid", Grid.String())
	assert.Equal(t, "unknown", Category(9).String())
}
