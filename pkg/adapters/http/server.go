package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/render"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Wiki is the part of the tendril facade the HTTP adapter serves.
type Wiki interface {
	Titles() []string
	Get(title string) (*domain.Entity, bool)
	Put(e *domain.Entity)
	Delete(title string)
	Tick() int
	RenderEntity(title, format string) (string, error)
	OnChange(listener func(domain.ChangeSet)) ports.Subscription
}

var _ Wiki = (*tendril.Wiki)(nil)

// Server exposes a wiki over HTTP.
type Server struct {
	Wiki    Wiki
	Streams *StreamManager

	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics serves the collectors of g at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates the HTTP handler for wiki. The returned subscription
// feeds the /events stream and should be cancelled when the server stops.
func NewHandler(wiki Wiki, opts ...Option) (http.Handler, ports.Subscription) {
	s := &Server{
		Wiki:    wiki,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	sub := wiki.OnChange(s.broadcast)

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Route("/entities", func(r chi.Router) {
		r.Get("/", s.ListEntities)
		r.Get("/{title}", s.GetEntity)
		r.Put("/{title}", s.PutEntity)
		r.Delete("/{title}", s.DeleteEntity)
	})
	r.Get("/render/{title}", s.Render)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r), sub
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// ListEntities handles GET /entities.
func (s *Server) ListEntities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Wiki.Titles())
}

// GetEntity handles GET /entities/{title}.
func (s *Server) GetEntity(w http.ResponseWriter, r *http.Request) {
	title := titleParam(r)
	e, ok := s.Wiki.Get(title)
	if !ok {
		http.Error(w, fmt.Sprintf("%q: %v", title, domain.ErrEntityNotFound), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// PutEntity handles PUT /entities/{title}. The body is a JSON object of
// fields; the title in the path wins over any title field in the body.
func (s *Server) PutEntity(w http.ResponseWriter, r *http.Request) {
	title := titleParam(r)
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("put: invalid request body", "title", title, "error", err)
		return
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	fields[domain.FieldTitle] = title
	e, err := domain.NewEntity(fields)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid entity: %v", err), http.StatusBadRequest)
		return
	}
	_, existed := s.Wiki.Get(title)
	s.Wiki.Put(e)
	s.Wiki.Tick()

	status := http.StatusOK
	if !existed {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, e)
}

// DeleteEntity handles DELETE /entities/{title}.
func (s *Server) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	title := titleParam(r)
	if _, ok := s.Wiki.Get(title); !ok {
		http.Error(w, fmt.Sprintf("%q: %v", title, domain.ErrEntityNotFound), http.StatusNotFound)
		return
	}
	s.Wiki.Delete(title)
	s.Wiki.Tick()
	w.WriteHeader(http.StatusNoContent)
}

// titleParam returns the title path segment. Titles containing slashes
// arrive escaped.
func titleParam(r *http.Request) string {
	raw := chi.URLParam(r, "title")
	if title, err := url.PathUnescape(raw); err == nil {
		return title
	}
	return raw
}

var formats = map[string]string{
	"":         render.FormatHTML,
	"html":     render.FormatHTML,
	"text":     render.FormatPlain,
	"plain":    render.FormatPlain,
	"markdown": render.FormatMarkdown,
	"md":       render.FormatMarkdown,
}

// Render handles GET /render/{title}?format=html|text|markdown.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	title := titleParam(r)
	name := r.URL.Query().Get("format")
	format, ok := formats[name]
	if !ok {
		format = name
	}
	out, err := s.Wiki.RenderEntity(title, format)
	switch {
	case errors.Is(err, domain.ErrEntityNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrUnknownFormat):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("Render error: %v", err), http.StatusInternalServerError)
		s.logger.Error("render failed", "title", title, "error", err)
		return
	}
	w.Header().Set("Content-Type", format+"; charset=utf-8")
	fmt.Fprint(w, out)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "tendril-http",
		"version": strings.TrimSpace(tendril.Version),
	})
}

func (s *Server) broadcast(cs domain.ChangeSet) {
	payload, err := json.Marshal(cs)
	if err != nil {
		s.logger.Error("change encode failed", "error", err)
		return
	}
	s.Streams.Broadcast(string(payload))
}

// StreamManager fans change batches out to connected SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan string]struct{}
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan string]struct{}),
		logger:      logging.NewNop(),
	}
}

func (sm *StreamManager) Subscribe() (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}
	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Len returns the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("sse: client buffer full, dropping message")
		}
	}
}

// SubscribeEvents handles GET /events, streaming every change batch as a
// JSON object of title to change. The watch parameter limits the stream to
// batches touching one of the comma-separated titles.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, title := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(title))
		}
	}

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !touches(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func touches(msg string, titles []string) bool {
	var cs domain.ChangeSet
	if err := json.Unmarshal([]byte(msg), &cs); err != nil {
		return true
	}
	for _, title := range titles {
		if cs.Has(title) {
			return true
		}
	}
	return false
}
