// Package server exposes the identity engine over a small JSON HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	stockhttp "github.com/stocktide/stocktide/internal/http"
	"github.com/stocktide/stocktide/internal/identity"
	"github.com/stocktide/stocktide/internal/logger"
	"github.com/stocktide/stocktide/internal/sessions"
)

// Server resolves session tokens into tenant identities.
type Server struct {
	service *identity.Service
	tokens  *sessions.TokenSource
}

// New creates a server over the given identity service and token source.
func New(service *identity.Service, tokens *sessions.TokenSource) *Server {
	return &Server{service: service, tokens: tokens}
}

// Handler builds the HTTP handler with CORS, client IP and request logging
// middleware applied.
func (s *Server) Handler(allowedOrigins []string, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/identity/resolve", s.handleResolve)

	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := middleware.Handler(mux)
	handler = stockhttp.ClientIPMiddleware()(handler)
	handler = logger.Requests(log)(handler)
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// profileResponse is the wire shape of a resolved profile.
type profileResponse struct {
	PrincipalID        string    `json:"principal_id"`
	TenantID           string    `json:"tenant_id"`
	Role               string    `json:"role"`
	BranchID           *string   `json:"branch_id,omitempty"`
	DisplayName        string    `json:"display_name"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

type tenantResponse struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Plan     string            `json:"plan"`
	Status   string            `json:"status"`
	Settings map[string]string `json:"settings,omitempty"`
}

type resolveResponse struct {
	Profile      profileResponse `json:"profile"`
	Tenant       tenantResponse  `json:"tenant"`
	Degraded     bool            `json:"degraded"`
	PendingSetup bool            `json:"pending_setup"`
	Advisory     string          `json:"advisory,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
		return
	}

	event, err := s.tokens.Parse(token)
	if err != nil {
		status := http.StatusUnauthorized
		msg := "invalid session"
		if errors.Is(err, sessions.ErrExpiredSession) {
			msg = "session expired"
		}
		writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	zerolog.Ctx(r.Context()).Debug().
		Str("principal_id", event.PrincipalID).
		Str("client_ip", stockhttp.ClientIPFromContext(r.Context())).
		Msg("Resolving session")

	resolved, err := s.service.Resolve(r.Context(), event)
	if err != nil {
		if identity.IsSchema(err) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store schema unavailable"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "resolution failed"})
		return
	}

	writeJSON(w, http.StatusOK, toResolveResponse(resolved))
}

func toResolveResponse(resolved *identity.ResolvedIdentity) resolveResponse {
	resp := resolveResponse{
		Profile: profileResponse{
			PrincipalID:        resolved.Profile.ID,
			TenantID:           resolved.Profile.TenantID,
			Role:               resolved.Profile.Role,
			BranchID:           resolved.Profile.BranchID,
			DisplayName:        resolved.Profile.DisplayName,
			MustChangePassword: resolved.Profile.MustChangePassword,
			CreatedAt:          resolved.Profile.CreatedAt,
		},
		Degraded:     resolved.Degraded,
		PendingSetup: resolved.PendingSetup(),
	}

	if resolved.Tenant != nil {
		resp.Tenant = tenantResponse{
			ID:       resolved.Tenant.ID,
			Name:     resolved.Tenant.Name,
			Plan:     resolved.Tenant.Plan,
			Status:   resolved.Tenant.Status,
			Settings: resolved.Tenant.Settings,
		}
	}

	if resolved.Advisory != nil {
		resp.Advisory = resolved.Advisory.Error()
	}

	return resp
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
