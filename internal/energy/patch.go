package energy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ThresholdsPatch updates part of one category. Thresholds are given in kW.
type ThresholdsPatch struct {
	Good      *RGB     `json:"good,omitempty"`
	OK        *RGB     `json:"ok,omitempty"`
	Attention *RGB     `json:"attention,omitempty"`
	Warning   *RGB     `json:"warning,omitempty"`
	T0KW      *float64 `json:"t0Kw,omitempty"`
	T1KW      *float64 `json:"t1Kw,omitempty"`
	T2KW      *float64 `json:"t2Kw,omitempty"`
}

// AlarmPatch updates part of the alarm settings
type AlarmPatch struct {
	PulseCycleMs  *int   `json:"pulseCycleMs,omitempty"`
	PulsePeakPct  *int   `json:"pulsePeakPct,omitempty"`
	ClearDelayMs  *int   `json:"clearDelayMs,omitempty"`
	HysteresisMkw *int64 `json:"hysteresisMkw,omitempty"`
}

// UnmarshalJSON accepts every field as a JSON integer or a numeric string
// such as "800". Any other string is an error.
func (p *AlarmPatch) UnmarshalJSON(data []byte) error {
	var raw struct {
		PulseCycleMs  json.RawMessage `json:"pulseCycleMs"`
		PulsePeakPct  json.RawMessage `json:"pulsePeakPct"`
		ClearDelayMs  json.RawMessage `json:"clearDelayMs"`
		HysteresisMkw json.RawMessage `json:"hysteresisMkw"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out AlarmPatch
	var err error
	if out.PulseCycleMs, err = intField("pulseCycleMs", raw.PulseCycleMs); err != nil {
		return err
	}
	if out.PulsePeakPct, err = intField("pulsePeakPct", raw.PulsePeakPct); err != nil {
		return err
	}
	if out.ClearDelayMs, err = intField("clearDelayMs", raw.ClearDelayMs); err != nil {
		return err
	}
	if out.HysteresisMkw, err = int64Field("hysteresisMkw", raw.HysteresisMkw); err != nil {
		return err
	}
	*p = out
	return nil
}

func int64Field(name string, raw json.RawMessage) (*int64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}
	if text[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		text = strings.TrimSpace(s)
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not an integer", name, text)
	}
	return &v, nil
}

func intField(name string, raw json.RawMessage) (*int, error) {
	v, err := int64Field(name, raw)
	if err != nil || v == nil {
		return nil, err
	}
	if *v > math.MaxInt32 || *v < math.MinInt32 {
		return nil, fmt.Errorf("invalid %s: %d is out of range", name, *v)
	}
	n := int(*v)
	return &n, nil
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	Solar *ThresholdsPatch `json:"solar,omitempty"`
	Home  *ThresholdsPatch `json:"home,omitempty"`
	Grid  *ThresholdsPatch `json:"grid,omitempty"`

	SolarBarMaxKW *float64 `json:"solarBarMaxKw,omitempty"`
	HomeBarMaxKW  *float64 `json:"homeBarMaxKw,omitempty"`
	GridBarMaxKW  *float64 `json:"gridBarMaxKw,omitempty"`

	Alarm *AlarmPatch `json:"alarm,omitempty"`
}

// Merge applies p on top of s, clamping each field to its allowed range,
// and returns the normalized result. s is not modified.
func Merge(s Settings, p SettingsPatch) Settings {
	mergeThresholds(&s.Solar, p.Solar)
	mergeThresholds(&s.Home, p.Home)
	mergeThresholds(&s.Grid, p.Grid)

	if p.SolarBarMaxKW != nil {
		s.SolarBarMaxKW = clampKW(*p.SolarBarMaxKW)
	}
	if p.HomeBarMaxKW != nil {
		s.HomeBarMaxKW = clampKW(*p.HomeBarMaxKW)
	}
	if p.GridBarMaxKW != nil {
		s.GridBarMaxKW = clampKW(*p.GridBarMaxKW)
	}

	if a := p.Alarm; a != nil {
		if a.PulseCycleMs != nil {
			s.Alarm.PulseCycleMs = *a.PulseCycleMs
		}
		if a.PulsePeakPct != nil {
			s.Alarm.PulsePeakPct = *a.PulsePeakPct
		}
		if a.ClearDelayMs != nil {
			s.Alarm.ClearDelayMs = *a.ClearDelayMs
		}
		if a.HysteresisMkw != nil {
			h := *a.HysteresisMkw
			if h < 0 {
				h = 0
			} else if h > MaxHysteresisMkw {
				h = MaxHysteresisMkw
			}
			s.Alarm.HysteresisMkw = int32(h)
		}
	}

	Normalize(&s)
	return s
}

func mergeThresholds(t *Thresholds, p *ThresholdsPatch) {
	if p == nil {
		return
	}
	for _, f := range []struct {
		dst *RGB
		src *RGB
	}{
		{&t.Good, p.Good},
		{&t.OK, p.OK},
		{&t.Attention, p.Attention},
		{&t.Warning, p.Warning},
	} {
		if f.src != nil {
			*f.dst = *f.src & 0xFFFFFF
		}
	}
	for i, kw := range []*float64{p.T0KW, p.T1KW, p.T2KW} {
		if kw != nil {
			t.T[i] = KWToMkw(clampKW(*kw))
		}
	}
}

// clampKW limits a kW value to 0..MaxKW; NaN becomes 0
func clampKW(kw float64) float64 {
	if math.IsNaN(kw) || kw < 0 {
		return 0
	}
	if kw > MaxKW {
		return MaxKW
	}
	return kw
}
