package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/raildesk/raildesk/pkg/audit"
	"github.com/raildesk/raildesk/pkg/identity"
	"github.com/raildesk/raildesk/pkg/idp"
	"github.com/raildesk/raildesk/pkg/middleware"
	"github.com/raildesk/raildesk/pkg/observability"
)

// Server represents the accounts API server
type Server struct {
	router   *mux.Router
	accounts *AccountHandlers
}

// NewServer creates a new API server
func NewServer(store identity.Store, adminClient idp.AdminClient, auditor audit.Recorder, logger *observability.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		accounts: NewAccountHandlers(store, adminClient, auditor, logger),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.accounts.RegisterRoutes(s.router)
}

// Router exposes the underlying router so middleware can be applied
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// requireAdmin is a route-level shorthand for the admin guard
func requireAdmin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

// requireAuth is a route-level shorthand for the authentication guard
func requireAuth(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuthentication(h)
}
