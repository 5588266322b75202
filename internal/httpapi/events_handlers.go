package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"lcamail-engine/internal/events"
)

type EventsHandler struct {
	Hub       *events.Hub
	KeepAlive time.Duration
}

// ServeSSE streams the caller's dispatch events.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	topic := events.UserTopic(claimsFrom(r.Context()).UserID)
	ch := h.Hub.Subscribe(topic)
	defer h.Hub.Unsubscribe(topic, ch)

	// Ping as a proper event envelope
	reqID := RequestIDFrom(r.Context())
	ping := events.MakeEvent(reqID, events.TypePing, nil)
	fmt.Fprintf(w, "event: message\ndata: %s\n\n", ping)
	flusher.Flush()

	keep := h.KeepAlive
	if keep <= 0 {
		keep = 25 * time.Second
	}
	tick := time.NewTicker(keep)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
