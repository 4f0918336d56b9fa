package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"streamvault/internal/events"
)

// EventsHandler streams bus events to clients over server-sent events.
type EventsHandler struct {
	bus *events.Bus
}

func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// Stream subscribes the client to import, playback and download events.
// A ?topic= parameter narrows the stream to one topic.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	topics := []string{
		events.TopicImportProgress,
		events.TopicImportDone,
		events.TopicPlaybackState,
		events.TopicDownloadState,
	}
	if t := r.URL.Query().Get("topic"); t != "" {
		topics = []string{t}
	}

	merged := make(chan events.Event, 16)
	for _, topic := range topics {
		ch, cancel := h.bus.Subscribe(topic)
		defer cancel()
		go func() {
			for ev := range ch {
				select {
				case merged <- ev:
				default:
				}
			}
		}()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-merged:
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, payload)
			flusher.Flush()
		}
	}
}
