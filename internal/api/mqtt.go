package api

import (
	"net/http"

	"energymon/internal/mqtt"
)

// MQTTHandler serves the broker connection status
type MQTTHandler struct {
	source StatusSource
}

// NewMQTTHandler creates new MQTT status handler
func NewMQTTHandler(source StatusSource) *MQTTHandler {
	return &MQTTHandler{source: source}
}

// Status returns the connection status
// GET /api/mqtt/status
func (h *MQTTHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeJSON(w, http.StatusOK, mqtt.Status{State: mqtt.StateDisabled})
		return
	}
	writeJSON(w, http.StatusOK, h.source.Status())
}
