package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"reputation-chain/logger"
)

const subscriberBuffer = 64

// Events streams round events to a participant as Server-Sent Events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.Hub.Subscribe(subscriberBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": subscribed\n\n")
	flusher.Flush()

	logger.Logger.Debug("Event subscriber connected", zap.String("remote", r.RemoteAddr))
	for {
		select {
		case <-r.Context().Done():
			logger.Logger.Debug("Event subscriber gone", zap.String("remote", r.RemoteAddr))
			return
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				logger.Logger.Error("Failed to encode event", zap.String("type", ev.Type), zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
