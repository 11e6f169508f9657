package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kdimtricp/copyscan/internal/session"
)

// snapshotEvent opens every analysis stream with the current state.
const snapshotEvent = "snapshot"

// AnalysisStreamHandler streams a session's updates as server-sent events.
// The stream ends after a result, cancellation or reset, or immediately
// after the snapshot when no analysis is running.
func (app *App) AnalysisStreamHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe, snap, err := sess.Subscribe(r.Context())
	if err != nil {
		app.renderFailure(w, r, err)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := app.writeEvent(w, snapshotEvent, snap); err != nil {
		return
	}
	flusher.Flush()

	if snap.Status != session.StatusAnalyzing {
		return
	}

	clientGone := r.Context().Done()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := app.writeEvent(w, update.Type, update.Data); err != nil {
				return
			}
			flusher.Flush()
			if update.Terminal() {
				return
			}

		case <-clientGone:
			return
		}
	}
}

func (app *App) writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		app.logger().Error("failed to marshal update", "event", event, "error", err)
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
