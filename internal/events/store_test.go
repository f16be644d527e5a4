package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRingBuffer(t *testing.T) {
	s := NewStore(3)
	for i := 0; i < 5; i++ {
		s.Add(EventAlarmEngaged, "solar", true, "")
	}

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, int64(5), s.LastID())

	all := s.GetAll()
	require.Len(t, all, 3)
	assert.Equal(t, int64(5), all[0].ID, "newest first")
	assert.Equal(t, int64(3), all[2].ID)
}

func TestStoreDefaultCapacity(t *testing.T) {
	s := NewStore(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		s.Add(EventDecodeFailed, "grid", false, "bad payload")
	}
	assert.Equal(t, DefaultCapacity, s.Count())
}

func TestStoreGetLastAndSince(t *testing.T) {
	s := NewStore(10)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.Add(EventMQTTConnected, "", true, "broker:1883")
	s.Add(EventMQTTSubscribed, "", true, "solar/power")
	s.Add(EventAlarmEngaged, "grid", true, "3.20 kW")

	last := s.GetLast(2)
	require.Len(t, last, 2)
	assert.Equal(t, EventAlarmEngaged, last[0].Type)
	assert.Equal(t, "grid", last[0].Category)
	assert.Equal(t, fixed, last[0].Timestamp)

	assert.Len(t, s.GetLast(100), 3)
	assert.Empty(t, s.GetLast(-1))

	since := s.GetSince(1)
	require.Len(t, since, 2)
	assert.Equal(t, int64(3), since[0].ID)
	assert.Equal(t, int64(2), since[1].ID)

	assert.Empty(t, s.GetSince(3))
}

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	assert.NotPanics(t, func() {
		s.Add(EventAlarmCleared, "home", true, "")
	})
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, int64(0), s.LastID())
	assert.Empty(t, s.GetAll())
	assert.Empty(t, s.GetSince(0))
}
