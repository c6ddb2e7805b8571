package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/passless/passless"
	"github.com/passless/passless/internal/broadcast"
	"github.com/passless/passless/internal/logging"
)

const sseHeartbeat = 25 * time.Second

// Handler exposes the router over local HTTP: one message endpoint, one
// server-sent-events stream for broadcasts, and a health probe.
func Handler(r *Router, events *broadcast.FanoutSink) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Post("/v1/message", func(w http.ResponseWriter, req *http.Request) {
		var envelope Request
		if err := json.NewDecoder(req.Body).Decode(&envelope); err != nil {
			writeJSON(w, http.StatusBadRequest, failure(passless.ErrValidation))
			return
		}
		resp := r.Handle(req.Context(), envelope)
		status := http.StatusOK
		if !resp.Success {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, resp)
	})

	mux.Get("/v1/events", func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		ch, cancel := events.Subscribe(32)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-req.Context().Done():
				return
			case <-heartbeat.C:
				if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
					return
				}
				flusher.Flush()
			case event := <-ch:
				data, err := json.Marshal(event)
				if err != nil {
					logging.Warn("router", "event encode failed: %v", err)
					continue
				}
				if _, err := w.Write([]byte("event: " + event.Type + "\ndata: ")); err != nil {
					return
				}
				if _, err := w.Write(data); err != nil {
					return
				}
				if _, err := w.Write([]byte("\n\n")); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	})

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn("router", "response encode failed: %v", err)
	}
}
