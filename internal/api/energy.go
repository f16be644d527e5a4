package api

import (
	"net/http"

	"energymon/internal/energy"
)

// EnergyHandler serves the renderer frame and the display settings
type EnergyHandler struct {
	frames   FrameSource
	settings energy.SettingsSource
}

// NewEnergyHandler creates new energy handler
func NewEnergyHandler(frames FrameSource, settings energy.SettingsSource) *EnergyHandler {
	return &EnergyHandler{frames: frames, settings: settings}
}

// Frame returns the latest frame, or 503 before the first tick
// GET /api/energy
func (h *EnergyHandler) Frame(w http.ResponseWriter, r *http.Request) {
	if h.frames == nil {
		writeError(w, http.StatusServiceUnavailable, "monitor not running")
		return
	}
	frame := h.frames.Latest()
	if frame.At.IsZero() {
		writeError(w, http.StatusServiceUnavailable, "no frame yet")
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

// Settings returns the current normalized display settings
// GET /api/energy/settings
func (h *EnergyHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if h.settings == nil {
		writeJSON(w, http.StatusOK, energy.DefaultSettings())
		return
	}
	writeJSON(w, http.StatusOK, h.settings.Current())
}
