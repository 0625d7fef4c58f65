// Package devserver is a local stand-in for the portal: it serves the
// notification API, the websocket channel and metrics from a sqlite file.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhle/notehub/internal/api"
	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/realtime"
	"github.com/nhle/notehub/internal/store"
)

// Server wires the store, the socket hub and the HTTP routes.
type Server struct {
	store    store.Store
	hub      *Hub
	metrics  *Metrics
	registry *prometheus.Registry
	logg     *logging.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
}

// NewServer builds a Server around st.
func NewServer(st store.Store, logg *logging.Logger) *Server {
	if logg == nil {
		logg = logging.Nop()
	}
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	s := &Server{
		store:    st,
		hub:      NewHub(logg, metrics),
		metrics:  metrics,
		registry: registry,
		logg:     logg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

// Hub exposes the socket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.instrument)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/api/sessions", s.createSession).Methods(http.MethodPost)

	authed := router.NewRoute().Subrouter()
	authed.Use(s.requireSession)
	authed.HandleFunc("/api/notifications", s.injectNotification).Methods(http.MethodPost)
	authed.HandleFunc("/api/notifications/{recipientId}", s.listNotifications).Methods(http.MethodGet)
	authed.HandleFunc("/api/notifications/{id}/read", s.markRead).Methods(http.MethodPatch)
	authed.HandleFunc("/api/notifications/{recipientId}/read", s.deleteRead).Methods(http.MethodDelete)
	authed.HandleFunc("/ws", s.serveSocket).Methods(http.MethodGet)

	return router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logg.Info(s.logg.WithField(ctx, "addr", addr), "dev server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type recipientKey struct{}

// recipientFrom returns the recipient the request's session belongs to.
func recipientFrom(ctx context.Context) string {
	id, _ := ctx.Value(recipientKey{}).(string)
	return id
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(api.SessionCookie)
		if err != nil || cookie.Value == "" {
			http.Error(w, "session required", http.StatusUnauthorized)
			return
		}
		recipientID, err := s.store.RecipientForSession(r.Context(), cookie.Value)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "session unknown", http.StatusUnauthorized)
			return
		}
		if err != nil {
			s.logg.Error(r.Context(), "session lookup failed", err)
			http.Error(w, "session lookup failed", http.StatusInternalServerError)
			return
		}
		ctx := context.WithValue(r.Context(), recipientKey{}, recipientID)
		ctx = s.logg.WithRecipient(ctx, recipientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the hijacker for websockets.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := ""
		if current := mux.CurrentRoute(r); current != nil {
			route, _ = current.GetPathTemplate()
		}
		// The websocket upgrade needs the raw writer to hijack.
		if route == "/ws" {
			s.metrics.IncRequest(route, strconv.Itoa(http.StatusSwitchingProtocols))
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.IncRequest(route, strconv.Itoa(rec.status))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID string `json:"recipientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.RecipientID) == "" {
		http.Error(w, "recipientId is required", http.StatusBadRequest)
		return
	}

	token, err := s.store.CreateSession(r.Context(), req.RecipientID)
	if err != nil {
		s.logg.Error(r.Context(), "creating session", err)
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     api.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["recipientId"]
	if recipientID != recipientFrom(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	list, err := s.store.ListNotifications(r.Context(), recipientID)
	if err != nil {
		s.logg.Error(r.Context(), "listing notifications", err)
		http.Error(w, "could not list notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	n, err := s.store.GetNotification(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logg.Error(r.Context(), "loading notification", err)
		http.Error(w, "could not mark read", http.StatusInternalServerError)
		return
	}
	if n.RecipientID != recipientFrom(r.Context()) {
		http.Error(w, "notification not found", http.StatusNotFound)
		return
	}

	if err := s.store.MarkNotificationRead(r.Context(), id); err != nil {
		s.logg.Error(r.Context(), "marking notification read", err)
		http.Error(w, "could not mark read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) deleteRead(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["recipientId"]
	if recipientID != recipientFrom(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	removed, err := s.store.DeleteReadNotifications(r.Context(), recipientID)
	if err != nil {
		s.logg.Error(r.Context(), "deleting read notifications", err)
		http.Error(w, "could not delete", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": removed})
}

type injectRequest struct {
	RecipientID       string     `json:"recipientId"`
	Kind              model.Kind `json:"kind"`
	Message           string     `json:"message"`
	RelatedResourceID *string    `json:"relatedResourceId,omitempty"`
}

// injectNotification stores a notification and pushes it to the
// recipient's sockets. It stands in for the portal's own producers.
func (s *Server) injectNotification(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" || req.Message == "" {
		http.Error(w, "recipientId and message are required", http.StatusBadRequest)
		return
	}
	if req.Kind == "" {
		req.Kind = model.KindNewComment
	}

	n, err := s.store.CreateNotification(r.Context(), model.Notification{
		RecipientID:       req.RecipientID,
		Kind:              req.Kind,
		Message:           req.Message,
		RelatedResourceID: req.RelatedResourceID,
	})
	if err != nil {
		s.logg.Error(r.Context(), "creating notification", err)
		http.Error(w, "could not create notification", http.StatusInternalServerError)
		return
	}

	delivered := s.hub.Push(r.Context(), n)
	s.logg.Debug(s.logg.WithFields(r.Context(), map[string]any{
		"notification_id": n.ID,
		"delivered":       delivered,
	}), "notification injected")
	writeJSON(w, http.StatusCreated, n)
}

// serveSocket upgrades the request and waits for the register frame.
// Frames are only pushed to the socket after it registered.
func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logg.Error(ctx, "websocket upgrade failed", err)
		return
	}
	defer conn.Close()

	var frame realtime.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return
	}
	var reg realtime.Registration
	if frame.Type != realtime.FrameRegister || json.Unmarshal(frame.Data, &reg) != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "register first"),
			time.Now().Add(writeWait))
		return
	}
	if reg.RecipientID != recipientFrom(ctx) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "recipient mismatch"),
			time.Now().Add(writeWait))
		return
	}

	p := &peer{recipientID: reg.RecipientID, conn: conn}
	s.hub.add(p)
	defer s.hub.remove(p)
	s.logg.Info(s.logg.WithField(ctx, "display_name", reg.DisplayName), "socket registered")

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
