// Package telemetry holds the latest solar/grid power readings shared between
// the network goroutine (producer) and the render/alarm tick (consumer).
package telemetry

import (
	"math"
	"sync"
	"time"
)

// Category identifies an energy flow channel
type Category int

const (
	Solar Category = iota
	Home
	Grid
)

// Categories lists every category in evaluation order
var Categories = [...]Category{Solar, Home, Grid}

// String returns the lowercase category name
func (c Category) String() string {
	switch c {
	case Solar:
		return "solar"
	case Home:
		return "home"
	case Grid:
		return "grid"
	default:
		return "unknown"
	}
}

// Reading is the latest value received for a measured category.
// Value is NaN when no data is available.
type Reading struct {
	Value     float64   `json:"value"`
	Updated   bool      `json:"updated"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is a consistent copy of both measured readings
type Snapshot struct {
	Solar Reading
	Grid  Reading
}

// Home returns solar + grid, or NaN unless both inputs are present
func (s Snapshot) Home() float64 {
	if math.IsNaN(s.Solar.Value) || math.IsNaN(s.Grid.Value) {
		return math.NaN()
	}
	return s.Solar.Value + s.Grid.Value
}

// Value returns the value for any category, deriving home on demand
func (s Snapshot) Value(c Category) float64 {
	switch c {
	case Solar:
		return s.Solar.Value
	case Grid:
		return s.Grid.Value
	case Home:
		return s.Home()
	default:
		return math.NaN()
	}
}

// Store is safe for concurrent use. The lock only covers field copies;
// decoding and classification happen outside of it.
type Store struct {
	mu    sync.Mutex
	state Snapshot
}

// NewStore creates a store with both readings reset to NaN
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset clears both readings to "no data"
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = Snapshot{
		Solar: Reading{Value: math.NaN()},
		Grid:  Reading{Value: math.NaN()},
	}
	s.mu.Unlock()
}

// Set overwrites the reading for solar or grid and marks it updated.
// Home is derived and cannot be set; other categories are ignored.
func (s *Store) Set(c Category, value float64, now time.Time) {
	r := Reading{Value: value, Updated: true, UpdatedAt: now}

	s.mu.Lock()
	switch c {
	case Solar:
		s.state.Solar = r
	case Grid:
		s.state.Grid = r
	}
	s.mu.Unlock()
}

// Get returns a snapshot of both readings. When clearUpdates is true the
// updated flags are reset in the same critical section, so only one caller
// ever observes a given update.
func (s *Store) Get(clearUpdates bool) Snapshot {
	s.mu.Lock()
	snap := s.state
	if clearUpdates {
		s.state.Solar.Updated = false
		s.state.Grid.Updated = false
	}
	s.mu.Unlock()
	return snap
}
