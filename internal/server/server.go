// Package server provides the HTTP handlers and routing for the MCP server.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"recruitcrm-mcp/internal/tools"
)

const defaultSuggestLimit = 5

// Config contains the transport settings: inbound auth token, public URL and identity.
type Config struct {
	// Token guards /mcp, /sse and /message when set.
	Token string
	// PublicURL prefixes the message endpoint announced to SSE clients. Relative when empty.
	PublicURL string
	Name      string
	Version   string
	// RequestTimeout bounds request/response routes. SSE streams are exempt.
	RequestTimeout time.Duration
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Logger  *zap.Logger
}

// Server contains the configured router, dispatcher and MCP transports.
type Server struct {
	cfg        Config
	router     *chi.Mux
	dispatcher *tools.Dispatcher
	logger     *zap.Logger
	mcp        *mcpserver.MCPServer
	sse        *mcpserver.SSEServer
	streamable *mcpserver.StreamableHTTPServer
}

// New constructs a Server with middleware and routes configured.
func New(cfg Config, dispatcher *tools.Dispatcher) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "recruitcrm-mcp"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		cfg:        cfg,
		router:     chi.NewRouter(),
		dispatcher: dispatcher,
		logger:     cfg.Logger.Named("http"),
	}

	mcpSrv, err := newMCPServer(cfg.Name, cfg.Version, dispatcher)
	if err != nil {
		return nil, err
	}
	s.mcp = mcpSrv
	sseOpts := []mcpserver.SSEOption{
		mcpserver.WithSSEEndpoint("/sse"),
		mcpserver.WithMessageEndpoint("/message"),
		mcpserver.WithUseFullURLForMessageEndpoint(cfg.PublicURL != ""),
	}
	if cfg.PublicURL != "" {
		sseOpts = append(sseOpts, mcpserver.WithBaseURL(cfg.PublicURL))
	}
	s.sse = mcpserver.NewSSEServer(mcpSrv, sseOpts...)
	s.streamable = mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp/rpc"),
		mcpserver.WithStateLess(true),
	)

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.accessLog)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	if cfg.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	s.router.Route("/mcp", func(r chi.Router) {
		r.Use(s.auth)
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Get("/tools", s.handleListTools)
		r.Post("/call", s.handleCall)
		r.Get("/suggest", s.handleSuggest)
		r.Handle("/rpc", s.streamable)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.auth)
		r.Method(http.MethodGet, "/sse", s.sse.SSEHandler())
		r.Method(http.MethodPost, "/message", s.sse.MessageHandler())
	})

	return s, nil
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// Shutdown closes open SSE sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.sse.Shutdown(ctx), s.streamable.Shutdown(ctx))
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get("Authorization")
		want := "Bearer " + s.cfg.Token
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	catalog := s.dispatcher.Catalog()
	defs := catalog.All()
	if cat := r.URL.Query().Get("category"); cat != "" {
		defs = catalog.ByCategory(tools.Category(cat))
	}
	out := make([]Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolDescriptor(d))
	}
	writeJSON(w, http.StatusOK, ToolList{Tools: out})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, CallResponse{
			ID:     json.RawMessage("null"),
			Result: tools.Result{Kind: tools.KindInvalidRequest, Error: "invalid json: " + err.Error()},
		})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, CallResponse{
			ID:     req.echoID(),
			Result: tools.Result{Kind: tools.KindInvalidRequest, Error: "missing tool name"},
		})
		return
	}

	res := s.dispatcher.Invoke(r.Context(), tools.Invocation{
		ID:        req.invocationID(),
		Tool:      req.Name,
		Arguments: req.Arguments,
	})
	writeJSON(w, statusFor(res), CallResponse{ID: req.echoID(), Result: res})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q is required"})
		return
	}
	limit := defaultSuggestLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, SuggestResponse{
		Query:       q,
		Analysis:    tools.AnalyzeQuery(q),
		Suggestions: s.dispatcher.Catalog().Suggest(q, limit),
	})
}

func statusFor(res tools.Result) int {
	if res.Success {
		return http.StatusOK
	}
	if res.Kind == tools.KindInvalidRequest {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newInvocationID() string { return uuid.NewString() }
