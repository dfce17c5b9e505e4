package handler

import (
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/snapgram/internal/cache"
	"github.com/msomdec/snapgram/internal/queries"
)

// eventBuffer is how many invalidation events a slow client may fall behind
// before events are dropped for it.
const eventBuffer = 32

// EventsHandler streams cache invalidations to clients over SSE, so they know
// which queries to refetch.
type EventsHandler struct {
	cache *cache.Client
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(c *cache.Client) *EventsHandler {
	return &EventsHandler{cache: c}
}

// HandleStream patches an "invalidation" signal for every event until the
// client disconnects or the cache is closed.
// GET /api/events
func (h *EventsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	events, cancel := h.cache.Subscribe(eventBuffer)
	defer cancel()

	sse := datastar.NewSSE(w, r)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(map[string]any{"invalidation": redact(ev)}); err != nil {
				slog.Debug("events stream closed", "error", err)
				return
			}
		}
	}
}

// redact drops the session token from current-user keys. Every subscriber
// sees every event.
func redact(ev cache.Event) cache.Event {
	keys := make([]cache.Key, len(ev.Keys))
	for i, k := range ev.Keys {
		if len(k) > 1 && k[0] == queries.GetCurrentUser {
			k = cache.NewKey(queries.GetCurrentUser)
		}
		keys[i] = k
	}
	ev.Keys = keys
	return ev
}
