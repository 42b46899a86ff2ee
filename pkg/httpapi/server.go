package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-mailmerge/pkg/form"
	"github.com/goliatone/go-mailmerge/pkg/submission"
	"github.com/goliatone/go-mailmerge/pkg/template"
)

var (
	// ErrMissingStore signals a server built without templates.
	ErrMissingStore = errors.New("httpapi: template store is required")
)

// maxBodyBytes caps send payloads.
const maxBodyBytes = 4 << 20

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts handler at /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = handler
	}
}

// WithOrchestratorOptions forwards options to every per-template orchestrator.
func WithOrchestratorOptions(options ...submission.Option) Option {
	return func(s *Server) {
		s.orchestratorOptions = append(s.orchestratorOptions, options...)
	}
}

// WithShutdownTimeout bounds graceful shutdown in Serve.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.shutdownTimeout = timeout
		}
	}
}

// Server exposes the template store and the send flow over HTTP. Each
// template gets its own orchestrator, so concurrent sends of the same
// template are rejected while different templates proceed independently.
type Server struct {
	store               *template.Store
	credentials         submission.CredentialProvider
	dispatcher          submission.Dispatcher
	logger              *zap.Logger
	metricsHandler      http.Handler
	orchestratorOptions []submission.Option
	shutdownTimeout     time.Duration

	mu      sync.Mutex
	senders map[string]*sender

	router *mux.Router
}

type sender struct {
	schema       *form.Schema
	orchestrator *submission.Orchestrator
}

// New builds the server and its routes.
func New(store *template.Store, credentials submission.CredentialProvider, dispatcher submission.Dispatcher, options ...Option) (*Server, error) {
	if store == nil {
		return nil, ErrMissingStore
	}
	if credentials == nil {
		return nil, submission.ErrMissingCredentialProvider
	}
	if dispatcher == nil {
		return nil, submission.ErrMissingDispatcher
	}

	s := &Server{
		store:           store,
		credentials:     credentials,
		dispatcher:      dispatcher,
		logger:          zap.NewNop(),
		shutdownTimeout: 10 * time.Second,
		senders:         make(map[string]*sender),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/templates", s.handleListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/templates/{id}", s.handleGetTemplate).Methods(http.MethodGet)
	r.HandleFunc("/templates/{id}/schema", s.handleSchema).Methods(http.MethodGet)
	r.HandleFunc("/templates/{id}/send", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/templates/{id}/status", s.handleStatus).Methods(http.MethodGet)
	if s.metricsHandler != nil {
		r.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}
	r.Use(s.logRequests)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves on an existing listener until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http api listening", zap.String("addr", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("httpapi: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.logger.Info("http api shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(started)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// senderFor returns the orchestrator bound to tpl, rebuilding it when the
// template's placeholder set changed.
func (s *Server) senderFor(tpl template.Template) (*sender, error) {
	names := tpl.PlaceholderNames()

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.senders[tpl.ID]; ok && existing.schema.Matches(names) {
		return existing, nil
	}

	schema, err := form.NewSchema(names)
	if err != nil {
		return nil, err
	}
	options := append([]submission.Option{
		submission.WithLogger(s.logger.Named("submission")),
		submission.WithValidator(schema.Validate),
	}, s.orchestratorOptions...)
	orch, err := submission.New(s.credentials, s.dispatcher, options...)
	if err != nil {
		return nil, err
	}
	created := &sender{schema: schema, orchestrator: orch}
	s.senders[tpl.ID] = created
	return created, nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (template.Template, bool) {
	id := mux.Vars(r)["id"]
	tpl, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("template %q not found", id))
		return template.Template{}, false
	}
	return tpl, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
