package api

import (
	"net/http"
	"strconv"

	"energymon/internal/events"
)

// DefaultEventLimit is the number of events returned without ?limit
const DefaultEventLimit = 50

// EventsHandler handles event log endpoints
type EventsHandler struct {
	store *events.Store
}

// NewEventsHandler creates new events handler
func NewEventsHandler(store *events.Store) *EventsHandler {
	return &EventsHandler{store: store}
}

type eventsResponse struct {
	Events []events.Event `json:"events"`
	LastID int64          `json:"lastId"`
}

// List returns events, newest first.
// GET /api/events?limit=50&since=123&type=alarm_engaged
//
// since takes precedence over limit; type filters either result.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var list []events.Event
	if sinceStr := q.Get("since"); sinceStr != "" {
		sinceID, err := strconv.ParseInt(sinceStr, 10, 64)
		if err != nil || sinceID < 0 {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		list = h.store.GetSince(sinceID)
	} else {
		limit := DefaultEventLimit
		if limitStr := q.Get("limit"); limitStr != "" {
			l, err := strconv.Atoi(limitStr)
			if err != nil || l <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			if l > events.DefaultCapacity {
				l = events.DefaultCapacity
			}
			limit = l
		}
		list = h.store.GetLast(limit)
	}

	if t := q.Get("type"); t != "" {
		filtered := make([]events.Event, 0, len(list))
		for _, e := range list {
			if string(e.Type) == t {
				filtered = append(filtered, e)
			}
		}
		list = filtered
	}
	if list == nil {
		list = []events.Event{}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Events: list,
		LastID: h.store.LastID(),
	})
}
