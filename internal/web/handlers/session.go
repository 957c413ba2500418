package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/kadlecj/facetrack/internal/session"
)

// SessionHandler controls the attendance session and streams its live
// feedback.
type SessionHandler struct {
	manager *session.Manager
}

// NewSessionHandler creates the handler.
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

type sessionStatusResponse struct {
	ID        string         `json:"id"`
	Status    session.Status `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	StoppedAt *time.Time     `json:"stopped_at,omitempty"`
	Stats     session.Stats  `json:"stats"`
}

func toSessionStatus(sess *session.Session) sessionStatusResponse {
	return sessionStatusResponse{
		ID:        sess.ID,
		Status:    sess.GetStatus(),
		StartedAt: sess.StartedAt,
		StoppedAt: sess.StoppedAt(),
		Stats:     sess.GetStats(),
	}
}

// Start handles POST /session/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Start()
	if errors.Is(err, session.ErrSessionRunning) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		log.Printf("starting session: %v", err)
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	log.Printf("attendance session %s started", sess.ID)
	respondJSON(w, http.StatusCreated, toSessionStatus(sess))
}

// Stop handles POST /session/stop.
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Stop(); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	sess := h.manager.Current()
	log.Printf("attendance session %s stopped", sess.ID)
	respondJSON(w, http.StatusOK, toSessionStatus(sess))
}

// Status handles GET /session. Reports the most recent session, running or
// stopped.
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := h.manager.Current()
	if sess == nil {
		respondError(w, http.StatusNotFound, "no session has been started")
		return
	}
	respondJSON(w, http.StatusOK, toSessionStatus(sess))
}

// Events streams the running session's feedback via SSE. The stream ends when
// the session stops or the client disconnects.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess := h.manager.Current()
	if sess == nil {
		respondError(w, http.StatusNotFound, "no session has been started")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := sess.Broadcaster.AddListener()
	defer sess.Broadcaster.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", toSessionStatus(sess))

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				// Session stopped; say goodbye with the final counters.
				sendSSEEvent(w, flusher, "status", toSessionStatus(sess))
				return
			}
			sendSSEEvent(w, flusher, "feedback", event)
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
