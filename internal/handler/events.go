package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/middleware"
	"github.com/whatsdrip/dashboard/internal/service"
	"github.com/whatsdrip/dashboard/internal/session"
	"github.com/whatsdrip/dashboard/internal/sse"
	"github.com/whatsdrip/dashboard/internal/status"
)

type EventsHandler struct {
	broker    *sse.Broker
	view      *status.View
	dashboard *service.DashboardCache
	heartbeat time.Duration
}

func NewEventsHandler(broker *sse.Broker, view *status.View, dashboard *service.DashboardCache) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		view:      view,
		dashboard: dashboard,
		heartbeat: sse.HeartbeatInterval,
	}
}

// GET /v1/events
//
// The stream opens with the current connection status and dashboard data so
// a freshly loaded UI does not wait for the next change. It ends once the
// operator it was opened for is no longer signed in.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetIdentity(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(sse.DefaultTopic)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("uid", user.UID).Msg("sse connection established")

	if err := h.sendSnapshot(w, flusher, user.UID); err != nil {
		log.Debug().Err(err).Msg("failed to send initial events")
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("uid", user.UID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("uid", user.UID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			if sessionEnded(event, user.UID) {
				log.Info().Str("uid", user.UID).Msg("sse connection closed on sign-out")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("uid", user.UID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

// sessionEnded reports whether event says uid is no longer the signed-in
// operator.
func sessionEnded(event sse.Event, uid string) bool {
	if event.Type != sse.EventSession {
		return false
	}
	var state session.SessionEvent
	if err := json.Unmarshal(event.Data, &state); err != nil {
		log.Warn().Err(err).Msg("malformed session event")
		return false
	}
	if state.State == session.StateLoading {
		return false
	}
	return state.State != session.StateSignedIn || state.User == nil || state.User.UID != uid
}

func (h *EventsHandler) sendSnapshot(w http.ResponseWriter, flusher http.Flusher, uid string) error {
	if err := h.sendEvent(w, flusher, "connected", map[string]any{"uid": uid}); err != nil {
		return err
	}
	if current := h.view.Current(); current != nil {
		if err := h.sendEvent(w, flusher, sse.EventStatus, current); err != nil {
			return err
		}
	}
	if data, _ := h.dashboard.Get(); data != nil {
		if err := h.sendEvent(w, flusher, sse.EventDashboard, data); err != nil {
			return err
		}
	}
	return nil
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
