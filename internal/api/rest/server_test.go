package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitlement-engine/go-core/internal/lifecycle"
	"github.com/entitlement-engine/go-core/internal/metrics"
	"github.com/entitlement-engine/go-core/internal/policy"
	"github.com/entitlement-engine/go-core/pkg/types"
)

func testServer(t *testing.T, override *types.IdentityOverride) *Server {
	t.Helper()

	policyStore := policy.NewMemoryStore()
	err := policyStore.Replace(&types.PolicyDocument{
		Domains: map[string]*types.Domain{
			"acme": {
				ID:         "acme",
				Title:      "Acme Corp",
				VersionIDs: []string{"v1", "v2"},
				Network:    []string{"globex"},
			},
			"globex": {
				ID:            "globex",
				Title:         "Globex",
				VersionIDs:    []string{"v2"},
				SignupEnabled: true,
			},
		},
		Versions: map[string]*types.Version{
			"v1": {ID: "v1", Tag: "standard", Features: []string{"billing"}, Roles: []string{"admin"}},
			"v2": {ID: "v2", Tag: "premium", Features: []string{"billing", "reports"}, Roles: []string{"admin"}},
		},
		Roles: map[string]*types.Role{
			"admin": {ID: "admin", Title: "Administrator"},
		},
		Access: types.AccessMatrix{
			"billing": {"admin": {"view", "edit"}},
		},
		Settings: types.Settings{PermissionAll: "ALL"},
	})
	require.NoError(t, err)

	records := lifecycle.NewMemoryStore()
	manager := lifecycle.NewManager(records, policyStore)

	server, err := New(DefaultConfig(), policyStore, records, manager, override, metrics.New("test"), nil)
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestResolveSession_FirstActivation(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "POST", "/v1/session", SessionRequest{
		DomainID:  "acme",
		AccountID: "user-1",
		Roles:     []string{"admin"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "create", resp.Decision)
	require.NotNil(t, resp.Record)
	assert.Equal(t, "v1", resp.Record.VersionID)
	assert.Equal(t, "v1", resp.Version.ID)
	require.Len(t, resp.Roles, 1)
	assert.Equal(t, "admin", resp.Roles[0].ID)
}

func TestResolveSession_Unauthenticated(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "POST", "/v1/session", SessionRequest{DomainID: "acme"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "none", resp.Decision)
	assert.Nil(t, resp.Record)
}

func TestResolveSession_MissingDomain(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "POST", "/v1/session", SessionRequest{AccountID: "user-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_domain", resp.Code)
}

func TestResolveSession_OverrideApplies(t *testing.T) {
	domainID := "globex"
	server := testServer(t, &types.IdentityOverride{DomainID: &domainID})

	rec := doJSON(t, server, "POST", "/v1/session", SessionRequest{
		DomainID:  "acme",
		AccountID: "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "globex", resp.Record.DomainID)
	assert.Equal(t, "v2", resp.Record.VersionID)
}

func TestChangeVersion(t *testing.T) {
	server := testServer(t, nil)

	// Activate first
	rec := doJSON(t, server, "POST", "/v1/session", SessionRequest{
		DomainID: "acme", AccountID: "user-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Change to a different version: create
	rec = doJSON(t, server, "POST", "/v1/session/version", VersionChangeRequest{
		AccountID: "user-1",
		VersionID: "v2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "create", resp.Decision)
	assert.Equal(t, "v2", resp.Record.VersionID)

	// Same version again: update in place
	rec = doJSON(t, server, "POST", "/v1/session/version", VersionChangeRequest{
		AccountID: "user-1",
		VersionID: "v2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "update", resp.Decision)
}

func TestChangeVersion_NoRecord(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "POST", "/v1/session/version", VersionChangeRequest{
		AccountID: "ghost",
		VersionID: "v2",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheck(t *testing.T) {
	server := testServer(t, nil)

	session := SessionRequest{DomainID: "acme", AccountID: "user-1", Roles: []string{"admin"}}

	rec := doJSON(t, server, "POST", "/v1/access/check", CheckRequest{
		SessionRequest: session,
		FeatureID:      "billing",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)

	// Permission-level check
	rec = doJSON(t, server, "POST", "/v1/access/check", CheckRequest{
		SessionRequest: session,
		FeatureID:      "billing",
		PermissionID:   "edit",
	})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Allowed)

	// Feature not in the default version v1
	rec = doJSON(t, server, "POST", "/v1/access/check", CheckRequest{
		SessionRequest: session,
		FeatureID:      "reports",
	})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Allowed)
}

func TestCheck_UnauthenticatedFailsClosed(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "POST", "/v1/access/check", CheckRequest{
		SessionRequest: SessionRequest{DomainID: "acme", Roles: []string{"admin"}},
		FeatureID:      "billing",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Allowed)
}

func TestFeaturePermissions(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "POST", "/v1/access/permissions", FeaturePermissionsRequest{
		SessionRequest: SessionRequest{DomainID: "acme", AccountID: "user-1", Roles: []string{"admin"}},
		FeatureID:      "billing",
		RoleIDs:        []string{"admin"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FeaturePermissionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"edit", "view"}, resp.Permissions)
}

func TestDomainEndpoints(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "GET", "/v1/domains/signup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var domains []*types.Domain
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &domains))
	require.Len(t, domains, 1)
	assert.Equal(t, "globex", domains[0].ID)

	rec = doJSON(t, server, "GET", "/v1/domains/acme/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var versions []*types.Version
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 2)
	assert.Equal(t, "v1", versions[0].ID)

	rec = doJSON(t, server, "GET", "/v1/domains/acme/network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var network []types.DomainRef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &network))
	require.Len(t, network, 1)
	assert.Equal(t, "globex", network[0].ID)
}

func TestTaggedVersionsEndpoint(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "GET", "/v1/versions?pattern=prem*&sort=tag", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var versions []*types.Version
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &versions))
	require.Len(t, versions, 1)
	assert.Equal(t, "v2", versions[0].ID)

	rec = doJSON(t, server, "GET", "/v1/versions", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	server := testServer(t, nil)

	rec := doJSON(t, server, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}
