package energy

import (
	"time"

	"energymon/internal/telemetry"
)

// AlarmState is the per-category T2 alarm lifecycle
type AlarmState int

const (
	AlarmOff AlarmState = iota
	AlarmActive
	AlarmExiting
)

// String returns the state name
func (s AlarmState) String() string {
	switch s {
	case AlarmOff:
		return "off"
	case AlarmActive:
		return "active"
	case AlarmExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s AlarmState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition describes a state change of one category
type Transition struct {
	Category telemetry.Category
	From     AlarmState
	To       AlarmState
	Value    float64
}

type categoryAlarm struct {
	state            AlarmState
	clearPending     bool
	clearRequestedAt time.Time
}

// Alarm is the latching T2 alarm engine. It is owned by the consumer tick
// and is not safe for concurrent use.
type Alarm struct {
	cats        [len(telemetry.Categories)]categoryAlarm
	peak        RGB
	peakLatched bool
}

// NewAlarm creates an engine with every category Off
func NewAlarm() *Alarm {
	return &Alarm{}
}

// Reset returns every category to Off and releases the peak colour
func (a *Alarm) Reset() {
	*a = Alarm{}
}

// Evaluate advances every category by one tick and returns the transitions
// that happened, in category order.
func (a *Alarm) Evaluate(s Settings, snap telemetry.Snapshot, now time.Time) []Transition {
	var transitions []Transition
	var newly [len(telemetry.Categories)]bool

	delay := time.Duration(s.Alarm.ClearDelayMs) * time.Millisecond

	for i, c := range telemetry.Categories {
		ca := &a.cats[i]
		t := *s.For(c)
		value := snap.Value(c)
		abs := UseAbsolute(c)
		from := ca.state

		switch ca.state {
		case AlarmOff, AlarmExiting:
			if IsT2Triggered(t, value, abs) {
				ca.state = AlarmActive
				ca.clearPending = false
				newly[i] = true
			}

		case AlarmActive:
			switch {
			case !IsT2Cleared(t, value, abs, s.Alarm.HysteresisMkw):
				ca.clearPending = false
			case delay <= 0:
				ca.state = AlarmExiting
				ca.clearPending = false
			case !ca.clearPending:
				ca.clearPending = true
				ca.clearRequestedAt = now
			case now.Sub(ca.clearRequestedAt) >= delay:
				ca.state = AlarmExiting
				ca.clearPending = false
			}
		}

		if ca.state != from {
			transitions = append(transitions, Transition{Category: c, From: from, To: ca.state, Value: value})
		}
	}

	if a.Active() && !a.peakLatched {
		a.latchPeak(s, newly)
	}
	a.releasePeakIfIdle()

	return transitions
}

func (a *Alarm) latchPeak(s Settings, newly [len(telemetry.Categories)]bool) {
	for i, c := range telemetry.Categories {
		if newly[i] {
			a.peak = s.For(c).Warning
			a.peakLatched = true
			return
		}
	}
	for i, c := range telemetry.Categories {
		if a.cats[i].state == AlarmActive {
			a.peak = s.For(c).Warning
			a.peakLatched = true
			return
		}
	}
}

func (a *Alarm) releasePeakIfIdle() {
	for i := range a.cats {
		if a.cats[i].state != AlarmOff {
			return
		}
	}
	a.peakLatched = false
	a.peak = 0
}

// FinishExit moves every Exiting category to Off. It is called by the
// animation driver once the fade-out has completed.
func (a *Alarm) FinishExit() []Transition {
	var transitions []Transition
	for i, c := range telemetry.Categories {
		if a.cats[i].state == AlarmExiting {
			a.cats[i].state = AlarmOff
			transitions = append(transitions, Transition{Category: c, From: AlarmExiting, To: AlarmOff})
		}
	}
	a.releasePeakIfIdle()
	return transitions
}

// State returns the state of one category
func (a *Alarm) State(c telemetry.Category) AlarmState {
	if int(c) < 0 || int(c) >= len(a.cats) {
		return AlarmOff
	}
	return a.cats[c].state
}

// Active is the logical OR of every category's Active flag
func (a *Alarm) Active() bool {
	for i := range a.cats {
		if a.cats[i].state == AlarmActive {
			return true
		}
	}
	return false
}

// Exiting reports whether no category is Active but at least one is still
// fading out
func (a *Alarm) Exiting() bool {
	if a.Active() {
		return false
	}
	for i := range a.cats {
		if a.cats[i].state == AlarmExiting {
			return true
		}
	}
	return false
}

// Peak returns the latched peak colour
func (a *Alarm) Peak() (RGB, bool) {
	return a.peak, a.peakLatched
}
