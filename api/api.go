// Package api exposes a Ledger over HTTP with a chi router.
//
// Addresses appear in paths and bodies in their base58 text form. Amounts are
// JSON numbers in base units. Errors are returned as
//
//	{"error": {"code": "InsufficientVaultBalance", "message": "..."}}
//
// with the status code chosen by the error kind.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/parkledger"
)

// DefaultBasePath is the URL prefix used when none is configured.
const DefaultBasePath = "/"

// Server serves the ledger routes.
type Server struct {
	ledger   *parkledger.Ledger
	logger   *slog.Logger
	basePath string
	faucet   bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBasePath mounts every route under path.
func WithBasePath(path string) Option {
	return func(s *Server) { s.basePath = path }
}

// WithFaucet enables POST /accounts/{address}/credit.
func WithFaucet(enabled bool) Option {
	return func(s *Server) { s.faucet = enabled }
}

// New creates a Server for l.
func New(l *parkledger.Ledger, opts ...Option) *Server {
	s := &Server{
		ledger:   l,
		logger:   slog.Default(),
		basePath: DefaultBasePath,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.basePath = normalizeBase(s.basePath)
	return s
}

// Handler returns the routed handler with request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NotFound", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	if s.basePath == "/" {
		s.routes(r)
	} else {
		r.Route(s.basePath, s.routes)
	}
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", s.healthz)

	r.Route("/tenants", func(r chi.Router) {
		r.Post("/", s.createTenant)
		r.Get("/{admin}", s.lookupTenant)

		r.Route("/{tenant}/entries", func(r chi.Router) {
			r.Post("/", s.openEntry)
			r.Get("/", s.listEntries)

			r.Route("/{user}", func(r chi.Router) {
				r.Get("/", s.getEntry)
				r.Post("/deposit", s.deposit)
				r.Post("/withdraw", s.withdraw)
				r.Post("/sessions/start", s.startSession)
				r.Post("/sessions/exit", s.exitSession)
				r.Get("/receipts", s.listReceipts)
			})
		})
	})

	r.Post("/instructions", s.execute)

	r.Route("/accounts/{address}", func(r chi.Router) {
		r.Get("/", s.getAccount)
		if s.faucet {
			r.Post("/credit", s.credit)
		}
	})
}

func normalizeBase(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	return "/" + strings.Trim(p, "/")
}
