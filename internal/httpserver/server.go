package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/agent-manager/internal/domain"
)

const maxBodyBytes = 1 << 16

// Server is the HTTP server for the operator dashboard, the raw record
// explorer and their JSON API.
type Server struct {
	store      *domain.Store
	dispatcher *domain.Dispatcher
	journal    domain.JournalRepository
	logger     *slog.Logger
	templates  *template.Template
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates a new HTTP server. journal may be nil, which disables
// the journal endpoint.
func NewServer(
	port int,
	store *domain.Store,
	dispatcher *domain.Dispatcher,
	journal domain.JournalRepository,
	logger *slog.Logger,
) *Server {
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		journal:    journal,
		logger:     logger,
		templates:  parseTemplates(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     withLogging(logger, s.routes()),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /raw", s.handleExplorer)
	mux.HandleFunc("GET /ws", s.handleLive)
	mux.Handle("GET /static/", staticHandler())

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/raw", s.handleRawRecords)
	mux.HandleFunc("GET /api/journal", s.handleJournal)
	mux.HandleFunc("POST /api/bot/toggle", s.handleToggleBot)
	mux.HandleFunc("PUT /api/bot/interval", s.handleSetInterval)
	mux.HandleFunc("POST /api/scrape", s.handleScrape)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/posts/refresh", s.handleRefreshPosts)
	mux.HandleFunc("POST /api/posts/{id}/publish", s.handlePublish)
	return mux
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "dashboard.html", s.store.Snapshot())
}

func (s *Server) handleExplorer(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.LoadRawRecords(commandContext(r)); err != nil {
		s.logger.Warn("raw record load failed, rendering previous data", "error", err)
	}

	term := r.URL.Query().Get("q")
	snap := s.store.Snapshot()
	s.render(w, "raw.html", explorerPage{
		Query:    term,
		Records:  domain.FilterRecords(snap.Explorer.Records, term),
		LoadedAt: snap.Explorer.LoadedAt,
		Notices:  snap.Notices,
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleRawRecords(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.LoadRawRecords(commandContext(r)); err != nil {
		s.writeCommandError(w, err)
		return
	}

	records := domain.FilterRecords(s.store.Snapshot().Explorer.Records, r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "NotConfigured", "command journal is disabled")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 200 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	entries, next, err := s.journal.List(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		s.logger.Error("failed to list journal", "limit", limit, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list journal")
		return
	}

	resp := map[string]any{"entries": entries}
	if next != "" {
		resp["cursor"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleToggleBot(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dispatcher.ToggleBot(commandContext(r)))
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes *int `json:"minutes"`
	}
	if err := decodeBody(w, r, &req); err != nil || req.Minutes == nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be {\"minutes\": <int>}")
		return
	}
	s.respond(w, s.dispatcher.SetInterval(*req.Minutes))
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location string `json:"location"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be {\"location\": <string>}")
		return
	}
	s.respond(w, s.dispatcher.Scrape(commandContext(r), req.Location))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dispatcher.Generate(commandContext(r)))
}

func (s *Server) handleRefreshPosts(w http.ResponseWriter, r *http.Request) {
	s.respond(w, s.dispatcher.RefreshPosts(commandContext(r)))
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "post id must be an integer")
		return
	}
	s.respond(w, s.dispatcher.Publish(commandContext(r), id))
}

// respond answers a command with the fresh snapshot, or the error mapped to
// a status code.
func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	var (
		ve *domain.ValidationError
		re *domain.RemoteError
	)
	switch {
	case errors.Is(err, domain.ErrBusy):
		writeError(w, http.StatusConflict, "Busy", err.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusUnprocessableEntity, "Validation", ve.Message)
	case errors.As(err, &re):
		writeError(w, http.StatusBadGateway, "Rejected", re.Message)
	default:
		writeError(w, http.StatusBadGateway, "Unavailable", domain.MsgBackendUnreachable)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render template", "template", name, "error", err)
	}
}

// commandContext detaches a command from the browser request: a closed tab
// must not cancel a call the backend is already executing.
func commandContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
