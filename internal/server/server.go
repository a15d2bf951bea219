// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeranaias/cortex/internal/app"
	"github.com/jeranaias/cortex/internal/catalog"
	"github.com/jeranaias/cortex/internal/config"
	"github.com/jeranaias/cortex/internal/export"
	"github.com/jeranaias/cortex/internal/model"
	"github.com/jeranaias/cortex/internal/offline"
	"github.com/jeranaias/cortex/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is used when the config does not name one.
	DefaultPort = 1337

	// MaxRequestBodySize bounds JSON request bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// MaxMessageLength bounds a single chat message in bytes.
	MaxMessageLength = 100000
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	// Port to listen on (default: DefaultPort). The server binds loopback only.
	Port int

	Logger *zap.Logger

	// Gatherer backs GET /metrics (default: prometheus.DefaultGatherer)
	Gatherer prometheus.Gatherer

	// ConfigPath, when set, receives settings written through the API
	ConfigPath string

	// Version is reported by /health
	Version string

	// RateLimiter and CORS override the defaults
	RateLimiter *RateLimiter
	CORS        *CORSConfig
}

// Server serves the JSON API consumed by the chat UI.
type Server struct {
	app    *app.App
	opts   Options
	logger *zap.Logger
	mux    *http.ServeMux

	handler http.Handler

	// saveMu serializes settings writes to ConfigPath
	saveMu sync.Mutex

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// New creates a Server over a.
func New(a *app.App, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = DefaultRateLimiter()
	}
	if opts.CORS == nil {
		opts.CORS = DefaultCORSConfig()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		app:    a,
		opts:   opts,
		logger: opts.Logger,
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()

	s.handler = Chain(
		RecoveryMiddleware(s.logger),
		MetricsMiddleware(a.Metrics()),
		LoggingMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		CORSMiddleware(opts.CORS),
		RateLimitMiddleware(opts.RateLimiter, s.logger),
	)(s.mux)

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.opts.Port)
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/state", s.handleState)

	s.mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	s.mux.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	s.mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	s.mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	s.mux.HandleFunc("POST /api/conversations/{id}/select", s.handleSelectConversation)
	s.mux.HandleFunc("GET /api/conversations/{id}/export", s.handleExportConversation)
	s.mux.HandleFunc("POST /api/conversations/{id}/messages", s.handleSendMessage)
	s.mux.HandleFunc("POST /api/conversations/{id}/messages/{messageID}/regenerate", s.handleRegenerate)

	s.mux.HandleFunc("GET /api/models", s.handleListModels)
	s.mux.HandleFunc("POST /api/models/{id}/download", s.handleDownloadModel)
	s.mux.HandleFunc("POST /api/models/{id}/select", s.handleSelectModel)

	s.mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.handlePutSettings)
	s.mux.HandleFunc("POST /api/settings/reset", s.handleResetSettings)

	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
}

// ============================================================================
// HEALTH & STATE
// ============================================================================

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Source  string `json:"source"`
	Mode    string `json:"mode"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Settings().Get()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Source:  string(s.app.Source()),
		Mode:    offline.New(cfg.Privacy.LocalMode).Badge(),
	})
}

// StateResponse is everything the UI needs on first paint.
type StateResponse struct {
	Conversations []model.Conversation `json:"conversations"`
	ActiveID      string               `json:"active_id"`
	SelectedModel *model.ModelInfo     `json:"selected_model,omitempty"`
	Theme         string               `json:"theme"`
	LocalMode     bool                 `json:"local_mode"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Settings().Get()
	state := StateResponse{
		Conversations: s.app.Conversations(),
		ActiveID:      s.app.ActiveID(),
		Theme:         cfg.General.Theme,
		LocalMode:     cfg.Privacy.LocalMode,
	}
	if m, ok := s.app.SelectedModel(); ok {
		state.SelectedModel = &m
	}
	writeJSON(w, http.StatusOK, state)
}

// ============================================================================
// CONVERSATIONS
// ============================================================================

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Conversations())
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, s.app.NewChat())
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.app.Conversation(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.app.DeleteChat(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active_id": s.app.ActiveID()})
}

func (s *Server) handleSelectConversation(w http.ResponseWriter, r *http.Request) {
	if !s.app.SelectChat(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active_id": s.app.ActiveID()})
}

// handleExportConversation serves a conversation as a Markdown or JSON
// attachment, chosen by ?format=.
func (s *Server) handleExportConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.app.Conversation(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	opts := export.DefaultOptions()
	if m, ok := s.app.SelectedModel(); ok {
		opts.Model = m.Name
	}
	exp, err := export.ForFormat(r.URL.Query().Get("format"), opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	data, err := exp.Export(conv, now)
	if err != nil {
		if errors.Is(err, export.ErrEmptyConversation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", exp.MimeType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": export.Filename(conv, exp, now),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SendMessageRequest is the body of POST .../messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// A fetch runs to completion even if the client goes away; the fetch
// timeout bounds it.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Content) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("message exceeds %d bytes", MaxMessageLength))
		return
	}

	res, err := s.app.SendMessage(context.WithoutCancel(r.Context()), r.PathValue("id"), req.Content)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.Regenerate(context.WithoutCancel(r.Context()), r.PathValue("id"), r.PathValue("messageID"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ============================================================================
// MODELS
// ============================================================================

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var category model.Category
	if raw := q.Get("category"); raw != "" {
		c, err := model.ParseCategory(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		category = c
	}
	writeJSON(w, http.StatusOK, s.app.Models(q.Get("q"), category))
}

func (s *Server) handleDownloadModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.app.DownloadModel(id); err != nil {
		s.writeAppError(w, err)
		return
	}
	m, _ := s.app.Model(id)
	writeJSON(w, http.StatusAccepted, m)
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.app.SelectModel(id) {
		writeError(w, http.StatusNotFound, "model not found")
		return
	}
	m, _ := s.app.Model(id)
	writeJSON(w, http.StatusOK, m)
}

// ============================================================================
// SETTINGS
// ============================================================================

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Settings().Get().Redacted())
}

// handlePutSettings merges the body over the current settings. Keys sent
// back as config.RedactedValue keep their stored value.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.app.Settings()
	current := settings.Get()

	next := current.Clone()
	if !s.decode(w, r, next) {
		return
	}
	next.Unredact(current)

	if err := settings.Update(next); err != nil {
		var verrs config.ValidateErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "invalid settings",
				"fields": verrs,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.persist()
	writeJSON(w, http.StatusOK, settings.Get().Redacted())
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	s.app.Settings().Reset()
	s.persist()
	writeJSON(w, http.StatusOK, s.app.Settings().Get().Redacted())
}

// persist writes the live settings to ConfigPath. Failures are logged; the
// in-memory settings stay authoritative.
func (s *Server) persist() {
	if s.opts.ConfigPath == "" {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := config.Save(s.app.Settings().Get(), s.opts.ConfigPath); err != nil {
		s.logger.Error("CONFIG_SAVE_FAILED",
			zap.String("path", s.opts.ConfigPath),
			zap.Error(err))
	}
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on loopback and serves until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return http.ErrServerClosed
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("SERVER_START",
		zap.String("addr", ln.Addr().String()),
		zap.String("version", s.opts.Version))
	return srv.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.closed = true
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info("SERVER_SHUTDOWN")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: status})
}

// decode reads a size-limited JSON body into v. It writes the error
// response itself and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", MaxRequestBodySize))
			return false
		}
		s.logger.Debug("INVALID_BODY", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeAppError maps application errors to status codes.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, "a reply is already being generated")
	case errors.Is(err, app.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "model not found")
	case errors.Is(err, catalog.ErrNotDownloadable):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("REQUEST_ERROR", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "request failed")
	}
}
