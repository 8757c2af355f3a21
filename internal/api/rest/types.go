// Package rest provides the REST API surface of the entitlement server
package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/entitlement-engine/go-core/pkg/types"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SessionRequest carries the caller-supplied identity for session resolution
type SessionRequest struct {
	DomainID  string   `json:"domainId"`
	AccountID string   `json:"accountId,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// Identity converts the request to the caller identity
func (r SessionRequest) Identity() types.Identity {
	return types.Identity{
		DomainID:  r.DomainID,
		AccountID: r.AccountID,
		Roles:     r.Roles,
	}
}

// SessionResponse describes the resolved session
type SessionResponse struct {
	Record   *types.AccessRecord `json:"record,omitempty"`
	Decision string              `json:"decision"`
	Version  *types.Version      `json:"version,omitempty"`
	Roles    []*types.Role       `json:"roles,omitempty"`
	Modules  []string            `json:"modules,omitempty"`
}

// VersionChangeRequest asks for an explicit version (and optionally domain)
// change on the account's current record
type VersionChangeRequest struct {
	AccountID string `json:"accountId"`
	DomainID  string `json:"domainId,omitempty"`
	VersionID string `json:"versionId"`
}

// CheckRequest asks whether an identity may access a feature, and optionally
// a specific permission within it
type CheckRequest struct {
	SessionRequest
	FeatureID    string `json:"featureId"`
	PermissionID string `json:"permissionId,omitempty"`
}

// CheckResponse is the outcome of an access check
type CheckResponse struct {
	Allowed   bool   `json:"allowed"`
	FeatureID string `json:"featureId"`
	RequestID string `json:"requestId"`
}

// FeaturePermissionsRequest asks for the union of permissions a set of roles
// holds on a feature
type FeaturePermissionsRequest struct {
	SessionRequest
	FeatureID string   `json:"featureId"`
	RoleIDs   []string `json:"roleIds"`
}

// FeaturePermissionsResponse lists granted permission ids, sorted ascending
type FeaturePermissionsResponse struct {
	FeatureID   string   `json:"featureId"`
	Permissions []string `json:"permissions"`
}

// HealthResponse reports service health
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Code:    code,
		Message: message,
	})
}
