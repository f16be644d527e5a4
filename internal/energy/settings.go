// Package energy implements threshold classification, the T2 alarm state
// machine and the per-tick monitor that turns telemetry into display frames.
package energy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"energymon/internal/telemetry"
)

// RGB is a 24-bit colour, 0xRRGGBB
type RGB uint32

// Built-in colours
const (
	ColorGreen  RGB = 0x00FF00
	ColorWhite  RGB = 0xFFFFFF
	ColorOrange RGB = 0xFFA500
	ColorRed    RGB = 0xFF0000
	ColorBlack  RGB = 0x000000

	// ColorNoData is shown for categories without a reading
	ColorNoData = ColorWhite
)

// Hex formats the colour as "#RRGGBB"
func (c RGB) Hex() string {
	return fmt.Sprintf("#%06X", uint32(c)&0xFFFFFF)
}

// UnmarshalJSON accepts either a colour string or a plain JSON number
func (c *RGB) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return c.UnmarshalText([]byte(s))
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid colour %s: %w", data, err)
	}
	*c = RGB(n) & 0xFFFFFF
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *RGB) UnmarshalText(text []byte) error {
	v, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseColor accepts "#RRGGBB", "RRGGBB" or "0xRRGGBB". Values are masked to
// 24 bits.
func ParseColor(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return RGB(v) & 0xFFFFFF, nil
}

// Defaults
const (
	DefaultT0Mkw = 500
	DefaultT1Mkw = 1500
	DefaultT2Mkw = 3000

	DefaultBarMaxKW = 3.0

	DefaultPulseCycleMs  = 2000
	DefaultPulsePeakPct  = 100
	DefaultClearDelayMs  = 800
	DefaultHysteresisMkw = 100
	MinPulseCycleMs      = 200
	MaxPulseCycleMs      = 10000
	MaxPulsePeakPct      = 100
	MaxClearDelayMs      = 60000
	MaxHysteresisMkw     = 100000
	MaxKW                = 100.0
)

// Thresholds holds the colours and ascending milli-kW thresholds for one
// category. T[0] <= T[1] <= T[2] after normalization.
type Thresholds struct {
	Good      RGB      `json:"good"`
	OK        RGB      `json:"ok"`
	Attention RGB      `json:"attention"`
	Warning   RGB      `json:"warning"`
	T         [3]int32 `json:"thresholdsMkw"`
}

// DefaultThresholds returns green/white/orange/red at 0.5/1.5/3.0 kW
func DefaultThresholds() Thresholds {
	return Thresholds{
		Good:      ColorGreen,
		OK:        ColorWhite,
		Attention: ColorOrange,
		Warning:   ColorRed,
		T:         [3]int32{DefaultT0Mkw, DefaultT1Mkw, DefaultT2Mkw},
	}
}

// AlarmSettings tunes the T2 warning behaviour
type AlarmSettings struct {
	PulseCycleMs  int   `json:"pulseCycleMs"`
	PulsePeakPct  int   `json:"pulsePeakPct"`
	ClearDelayMs  int   `json:"clearDelayMs"`
	HysteresisMkw int32 `json:"hysteresisMkw"`
}

// Settings is the full set of energy display settings
type Settings struct {
	Solar Thresholds `json:"solar"`
	Home  Thresholds `json:"home"`
	Grid  Thresholds `json:"grid"`

	SolarBarMaxKW float64 `json:"solarBarMaxKw"`
	HomeBarMaxKW  float64 `json:"homeBarMaxKw"`
	GridBarMaxKW  float64 `json:"gridBarMaxKw"`

	Alarm AlarmSettings `json:"alarm"`
}

// DefaultSettings returns the factory settings
func DefaultSettings() Settings {
	return Settings{
		Solar:         DefaultThresholds(),
		Home:          DefaultThresholds(),
		Grid:          DefaultThresholds(),
		SolarBarMaxKW: DefaultBarMaxKW,
		HomeBarMaxKW:  DefaultBarMaxKW,
		GridBarMaxKW:  DefaultBarMaxKW,
		Alarm: AlarmSettings{
			PulseCycleMs:  DefaultPulseCycleMs,
			PulsePeakPct:  DefaultPulsePeakPct,
			ClearDelayMs:  DefaultClearDelayMs,
			HysteresisMkw: DefaultHysteresisMkw,
		},
	}
}

// For returns the thresholds of a category
func (s *Settings) For(c telemetry.Category) *Thresholds {
	switch c {
	case telemetry.Solar:
		return &s.Solar
	case telemetry.Home:
		return &s.Home
	default:
		return &s.Grid
	}
}

// BarMaxKW returns the bar chart scale of a category
func (s *Settings) BarMaxKW(c telemetry.Category) float64 {
	switch c {
	case telemetry.Solar:
		return s.SolarBarMaxKW
	case telemetry.Home:
		return s.HomeBarMaxKW
	default:
		return s.GridBarMaxKW
	}
}

// UseAbsolute reports whether a category is compared by magnitude.
// Grid keeps its sign: only import (positive) can reach the warning band.
func UseAbsolute(c telemetry.Category) bool {
	return c != telemetry.Grid
}

// Normalize repairs settings in place and reports whether anything changed.
// A category whose thresholds are not ascending is reset to defaults as a
// whole, colours included.
func Normalize(s *Settings) bool {
	changed := false
	for _, c := range telemetry.Categories {
		if normalizeThresholds(s.For(c)) {
			changed = true
		}
	}

	for _, p := range []*float64{&s.SolarBarMaxKW, &s.HomeBarMaxKW, &s.GridBarMaxKW} {
		if !(*p > 0) || math.IsInf(*p, 0) {
			*p = DefaultBarMaxKW
			changed = true
		}
	}

	a := &s.Alarm
	changed = clampInt(&a.PulseCycleMs, MinPulseCycleMs, MaxPulseCycleMs) || changed
	changed = clampInt(&a.PulsePeakPct, 0, MaxPulsePeakPct) || changed
	changed = clampInt(&a.ClearDelayMs, 0, MaxClearDelayMs) || changed
	if a.HysteresisMkw < 0 {
		a.HysteresisMkw = 0
		changed = true
	} else if a.HysteresisMkw > MaxHysteresisMkw {
		a.HysteresisMkw = MaxHysteresisMkw
		changed = true
	}

	return changed
}

func normalizeThresholds(t *Thresholds) bool {
	changed := false
	for _, p := range []*RGB{&t.Good, &t.OK, &t.Attention, &t.Warning} {
		if *p&^0xFFFFFF != 0 {
			*p &= 0xFFFFFF
			changed = true
		}
	}
	for i := range t.T {
		if t.T[i] < 0 {
			t.T[i] = 0
			changed = true
		}
	}
	if t.T[0] > t.T[1] || t.T[1] > t.T[2] {
		*t = DefaultThresholds()
		changed = true
	}
	return changed
}

func clampInt(v *int, lo, hi int) bool {
	switch {
	case *v < lo:
		*v = lo
	case *v > hi:
		*v = hi
	default:
		return false
	}
	return true
}

// KWToMkw converts kilowatts to rounded milli-kW, rounding half away from
// zero. Results outside the int32 range saturate.
func KWToMkw(kw float64) int32 {
	v := math.Round(kw * 1000)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}
