package httpapi

import (
	"net/http"

	"github.com/jordanhubbard/protogate/internal/events"
)

// EventsHandler implements the optional GET /v1/events SSE feed (A9),
// streaming routing and health-change events as they're published.
func EventsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			jsonError(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		sub := d.Events.Subscribe(32)
		defer d.Events.Unsubscribe(sub)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		_, _ = w.Write((&events.Event{Type: "connected"}).JSON())
		_, _ = w.Write([]byte("\n"))
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				_, _ = w.Write([]byte("data: "))
				_, _ = w.Write(ev.JSON())
				_, _ = w.Write([]byte("\n\n"))
				flusher.Flush()
			}
		}
	}
}
