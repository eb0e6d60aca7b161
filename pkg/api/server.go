package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/lobbyd/lobbyd/pkg/api/handlers"
	"github.com/lobbyd/lobbyd/pkg/api/middleware"
	"github.com/lobbyd/lobbyd/pkg/log"
)

// APIServer serves the thin HTTP surface next to the WebSocket endpoint:
// a health check, a hello route, and optional static assets. It carries
// no lobby logic.
type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port      int
	TLS       *TLSConfig
	StaticDir string
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	corsMiddleware := middleware.NewCORSMiddleware()

	r := mux.NewRouter()
	r.HandleFunc("/healthz", handlers.HandleHealthz()).Methods(http.MethodGet)
	r.HandleFunc("/api/", handlers.HandleHello()).Methods(http.MethodGet)
	if opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir)))
	}

	// the middleware wraps the router so unmatched paths and preflight
	// requests get CORS headers too
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: corsMiddleware(r),
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
