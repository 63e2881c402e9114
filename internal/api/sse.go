package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StreamLogs handles GET /api/v1/logs/stream (SSE)
func (h *Handlers) StreamLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	filter, err := parseLogFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  ErrCodeInvalidRequest,
		})
		return
	}

	subID, ch, err := h.logManager.Subscribe(filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer h.logManager.Unsubscribe(subID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Send initial comment to establish connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Slow clients lose lines: the subscription channel is buffered and
	// drops on overflow, and a failed write ends the stream.
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}

			data, err := json.Marshal(ToLogLineResponse(line))
			if err != nil {
				continue
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				h.logger.Debug("SSE write failed (client likely disconnected)", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
