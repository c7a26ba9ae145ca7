package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stocktide/stocktide/internal/identity"
	"github.com/stocktide/stocktide/internal/models"
	"github.com/stocktide/stocktide/internal/sessions"
	"github.com/stocktide/stocktide/internal/store"
	"github.com/stocktide/stocktide/internal/tenantid"
)

type fixture struct {
	handler  http.Handler
	tokens   *sessions.TokenSource
	profiles *store.MemoryProfileStore
	tenants  *store.MemoryTenantStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	profiles := store.NewMemoryProfileStore()
	tenants := store.NewMemoryTenantStore()

	service := identity.NewService(identity.Config{
		Profiles:   profiles,
		Tenants:    tenants,
		Dependents: store.NewMemoryDependentStore(),
		Progress:   store.NewMemoryMigrationStore(),
		Retry: identity.RetryPolicy{
			TransientDelays: []time.Duration{0, 0, 0},
			NotFoundRetries: 2,
		},
	})

	tokens, err := sessions.NewTokenSource([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)

	return &fixture{
		handler:  New(service, tokens).Handler([]string{"*"}, zerolog.Nop()),
		tokens:   tokens,
		profiles: profiles,
		tenants:  tenants,
	}
}

func (f *fixture) resolve(t *testing.T, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/identity/resolve", strings.NewReader("{}"))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ResolveExistingProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tenantID := tenantid.New()
	require.NoError(t, f.tenants.Create(ctx, &models.Tenant{ID: tenantID, OwnerPrincipalID: "p1", Name: "Corner Shop", Plan: models.PlanFree, Status: models.TenantStatusActive}))
	require.NoError(t, f.profiles.Create(ctx, &models.Profile{ID: "p1", TenantID: tenantID, Role: models.RoleOwner, DisplayName: "Ada Okafor"}))

	token, err := f.tokens.Issue("p1", "ada@example.com", nil)
	require.NoError(t, err)

	rec := f.resolve(t, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resolveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "p1", resp.Profile.PrincipalID)
	require.Equal(t, tenantID, resp.Profile.TenantID)
	require.Equal(t, "Corner Shop", resp.Tenant.Name)
	require.False(t, resp.Degraded)
	require.False(t, resp.PendingSetup)
}

func TestServer_ResolveHealsFromTokenMetadata(t *testing.T) {
	f := newFixture(t)

	token, err := f.tokens.Issue("p1", "ada@example.com", map[string]string{
		models.MetaFirstName:    "Ada",
		models.MetaLastName:     "Okafor",
		models.MetaBusinessName: "Corner Shop",
	})
	require.NoError(t, err)

	rec := f.resolve(t, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resolveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Degraded)
	require.True(t, tenantid.IsCanonical(resp.Profile.TenantID))
	require.Equal(t, "Corner Shop", resp.Tenant.Name)
}

func TestServer_ResolveDegradesWithoutMetadata(t *testing.T) {
	f := newFixture(t)

	token, err := f.tokens.Issue("p1", "ada@example.com", nil)
	require.NoError(t, err)

	rec := f.resolve(t, token)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp resolveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Degraded)
	require.True(t, resp.PendingSetup)
	require.Equal(t, tenantid.PendingSetup, resp.Profile.TenantID)
}

func TestServer_ResolveRejectsMissingToken(t *testing.T) {
	f := newFixture(t)

	rec := f.resolve(t, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_ResolveRejectsInvalidToken(t *testing.T) {
	f := newFixture(t)

	rec := f.resolve(t, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "invalid session", resp.Error)
}

func TestServer_ResolveRejectsWrongMethod(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/identity/resolve", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
