package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ace-status/internal/feed"
	"ace-status/internal/notify"
	"ace-status/internal/status"
)

// StatusService is the part of status.Service the HTTP layer needs.
type StatusService interface {
	GetStatus(ctx context.Context, opts status.Options) (string, error)
	SendStatus(ctx context.Context, opts status.Options) (status.Outcome, error)
}

// Invalidator drops cached feed snapshots.
type Invalidator interface {
	Invalidate(name string)
}

// Handler serves status requests. Query parameters override the configured
// default options per request.
type Handler struct {
	svc      StatusService
	cache    Invalidator
	defaults status.Options
}

func NewHandler(svc StatusService, cache Invalidator, defaults status.Options) *Handler {
	return &Handler{svc: svc, cache: cache, defaults: defaults}
}

// StatusResponse is the JSON body of GET /api/status.
type StatusResponse struct {
	Status      string    `json:"status"`
	Lines       []string  `json:"lines"`
	Empty       bool      `json:"empty"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// SendResponse is the JSON body of POST /api/status/send.
type SendResponse struct {
	Result string `json:"result"`
}

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewRouter mounts the API, health check and, when non-nil, the metrics
// handler.
func NewRouter(h *Handler, metrics http.Handler, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
		})
	})
	r.Get("/api/status", h.GetStatus)
	r.Post("/api/status/send", h.SendStatus)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	return r
}

// GetStatus handles GET /api/status?stop=&destination=&fresh=1
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	opts := h.options(r)
	text, err := h.svc.GetStatus(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, "Failed to compute status", err)
		return
	}
	resp := StatusResponse{
		Status:      text,
		Lines:       splitLines(text, opts),
		Empty:       text == "",
		GeneratedAt: time.Now().UTC(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// SendStatus handles POST /api/status/send
func (h *Handler) SendStatus(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.svc.SendStatus(r.Context(), h.options(r))
	if err != nil {
		h.writeError(w, r, "Failed to send status", err)
		return
	}
	writeJSON(w, http.StatusOK, SendResponse{Result: string(outcome)})
}

func (h *Handler) options(r *http.Request) status.Options {
	q := r.URL.Query()
	opts := h.defaults
	if v := strings.TrimSpace(q.Get("destination")); v != "" {
		opts.Destination = v
	}
	if v := strings.TrimSpace(q.Get("stop")); v != "" {
		opts.StopFilter = v
	}
	if q.Get("fresh") == "1" && h.cache != nil {
		h.cache.Invalidate(feed.FeedStops)
		h.cache.Invalidate(feed.FeedVehicles)
	}
	return opts
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := http.StatusInternalServerError
	var upstream *feed.UpstreamFetchError
	var delivery *notify.NotificationError
	switch {
	case errors.As(err, &upstream), errors.As(err, &delivery):
		code = http.StatusBadGateway
	case errors.Is(err, notify.ErrMissingCredentials):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	log.Printf("%s %s: %v (request %s)", r.Method, r.URL.Path, err, middleware.GetReqID(r.Context()))
	writeJSON(w, code, ErrorResponse{
		Error:   msg,
		Details: map[string]interface{}{"error": err.Error()},
	})
}

func splitLines(text string, opts status.Options) []string {
	if text == "" {
		return []string{}
	}
	if opts.StopFilter != "" {
		return strings.Split(text, ", ")
	}
	return strings.Split(text, "\n")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
