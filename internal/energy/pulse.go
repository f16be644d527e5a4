package energy

import (
	"math"
	"time"
)

// Pulse drives the warning fade. Phase runs 0..255 and back while an alarm
// is active; while exiting it only ramps down.
type Pulse struct {
	phase int
	dir   int
}

// NewPulse creates a driver at phase 0 ramping up
func NewPulse() *Pulse {
	return &Pulse{dir: 1}
}

// Reset puts the driver back at phase 0
func (p *Pulse) Reset() {
	p.phase = 0
	p.dir = 1
}

// Step advances the phase by elapsed. It returns the mix level (phase scaled
// by the peak percentage) and whether an exit fade has reached zero.
func (p *Pulse) Step(elapsed time.Duration, active, exiting bool, a AlarmSettings) (mix int, exited bool) {
	if !active && !exiting {
		p.Reset()
		return 0, false
	}

	cycle := a.PulseCycleMs
	if cycle < MinPulseCycleMs {
		cycle = MinPulseCycleMs
	} else if cycle > MaxPulseCycleMs {
		cycle = MaxPulseCycleMs
	}
	peak := a.PulsePeakPct
	if peak < 0 {
		peak = 0
	} else if peak > MaxPulsePeakPct {
		peak = MaxPulsePeakPct
	}

	tick := float64(elapsed.Milliseconds())
	if tick < 0 {
		tick = 0
	}
	step := int(math.Round(255 * 2 * tick / float64(cycle)))
	if step < 1 {
		step = 1
	}

	if exiting {
		p.dir = -1
	}
	p.phase += p.dir * step
	switch {
	case p.phase >= 255:
		p.phase = 255
		p.dir = -1
	case p.phase <= 0:
		p.phase = 0
		if exiting {
			exited = true
		} else {
			p.dir = 1
		}
	}

	return p.phase * peak / 100, exited
}

// Blend mixes from towards to by level/255
func Blend(from, to RGB, level int) RGB {
	if level <= 0 {
		return from
	}
	if level >= 255 {
		return to
	}
	mix := func(shift uint) RGB {
		f := int(from>>shift) & 0xFF
		t := int(to>>shift) & 0xFF
		return RGB(f+(t-f)*level/255) << shift
	}
	return mix(16) | mix(8) | mix(0)
}
