package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/entitlement-engine/go-core/internal/domain"
	"github.com/entitlement-engine/go-core/internal/evaluator"
	"github.com/entitlement-engine/go-core/internal/identity"
	"github.com/entitlement-engine/go-core/internal/lifecycle"
	"github.com/entitlement-engine/go-core/pkg/types"
)

// resolveSessionHandler handles POST /v1/session: identity resolution,
// lifecycle resolution, and a summary of the resolved version.
func (s *Server) resolveSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	id := identity.Resolve(req.Identity(), s.override)

	record, decision, err := s.manager.Resolve(r.Context(), id)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}

	doc := s.policies.Snapshot()
	eval := evaluator.New(doc, record, id.Roles)

	resp := SessionResponse{
		Record:   record,
		Decision: decision.String(),
	}
	if record != nil {
		resp.Version = eval.Version()
		resp.Roles = eval.RolesForVersion()
		resp.Modules = eval.DomainModules()
	}

	WriteJSON(w, http.StatusOK, resp)
}

// changeVersionHandler handles POST /v1/session/version
func (s *Server) changeVersionHandler(w http.ResponseWriter, r *http.Request) {
	var req VersionChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.AccountID == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "accountId is required")
		return
	}
	if req.VersionID == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "versionId is required")
		return
	}

	current, err := s.records.LoadCurrent(r.Context(), req.AccountID)
	if err != nil {
		if errors.Is(err, lifecycle.ErrRecordNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "No current access record for account")
			return
		}
		s.writeLifecycleError(w, err)
		return
	}

	newValues := types.AccessRecord{DomainID: req.DomainID, VersionID: req.VersionID}
	record, decision, err := s.manager.ChangeVersion(r.Context(), current, newValues)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, SessionResponse{
		Record:   record,
		Decision: decision.String(),
	})
}

// checkHandler handles POST /v1/access/check
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.FeatureID == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "featureId is required")
		return
	}

	requestID := uuid.NewString()
	id := identity.Resolve(req.Identity(), s.override)

	record, _, err := s.manager.Resolve(r.Context(), id)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}

	start := time.Now()
	eval := evaluator.New(s.policies.Snapshot(), record, id.Roles)

	var allowed bool
	if req.PermissionID == "" {
		allowed = eval.CanAccess(req.FeatureID)
	} else {
		allowed = eval.CanAccessPermission(req.FeatureID, req.PermissionID)
	}
	s.metrics.RecordCheck(allowed, time.Since(start))

	s.logger.Debug("Access check",
		zap.String("request_id", requestID),
		zap.String("account_id", id.AccountID),
		zap.String("feature_id", req.FeatureID),
		zap.String("permission_id", req.PermissionID),
		zap.Bool("allowed", allowed),
	)

	WriteJSON(w, http.StatusOK, CheckResponse{
		Allowed:   allowed,
		FeatureID: req.FeatureID,
		RequestID: requestID,
	})
}

// featurePermissionsHandler handles POST /v1/access/permissions
func (s *Server) featurePermissionsHandler(w http.ResponseWriter, r *http.Request) {
	var req FeaturePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.FeatureID == "" {
		WriteError(w, http.StatusBadRequest, "bad_request", "featureId is required")
		return
	}

	id := identity.Resolve(req.Identity(), s.override)

	record, _, err := s.manager.Resolve(r.Context(), id)
	if err != nil {
		s.writeLifecycleError(w, err)
		return
	}

	eval := evaluator.New(s.policies.Snapshot(), record, id.Roles)

	WriteJSON(w, http.StatusOK, FeaturePermissionsResponse{
		FeatureID:   req.FeatureID,
		Permissions: eval.UserFeaturePermissions(req.FeatureID, req.RoleIDs),
	})
}

// signupDomainsHandler handles GET /v1/domains/signup
func (s *Server) signupDomainsHandler(w http.ResponseWriter, r *http.Request) {
	resolver := domain.NewResolver(s.policies.Snapshot())
	WriteJSON(w, http.StatusOK, resolver.SignupDomains())
}

// domainVersionsHandler handles GET /v1/domains/{id}/versions
func (s *Server) domainVersionsHandler(w http.ResponseWriter, r *http.Request) {
	domainID := mux.Vars(r)["id"]
	resolver := domain.NewResolver(s.policies.Snapshot())
	WriteJSON(w, http.StatusOK, resolver.VersionsForDomain(domainID))
}

// domainNetworkHandler handles GET /v1/domains/{id}/network
func (s *Server) domainNetworkHandler(w http.ResponseWriter, r *http.Request) {
	domainID := mux.Vars(r)["id"]
	resolver := domain.NewResolver(s.policies.Snapshot())
	WriteJSON(w, http.StatusOK, resolver.DomainNetwork(domainID))
}

// taggedVersionsHandler handles GET /v1/versions?tags=a,b or ?pattern=p*&sort=tag
func (s *Server) taggedVersionsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter domain.TagFilter
	switch {
	case query.Get("tags") != "":
		filter = domain.Tags(strings.Split(query.Get("tags"), ",")...)
	case query.Get("pattern") != "":
		filter = domain.Pattern(query.Get("pattern"))
	default:
		WriteError(w, http.StatusBadRequest, "bad_request", "tags or pattern is required")
		return
	}

	resolver := domain.NewResolver(s.policies.Snapshot())
	WriteJSON(w, http.StatusOK, resolver.TaggedVersions(filter, query.Get("sort")))
}

// writeLifecycleError maps core errors to HTTP status codes
func (s *Server) writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrMissingDomain):
		WriteError(w, http.StatusBadRequest, "missing_domain", err.Error())
	case errors.Is(err, lifecycle.ErrPersistence):
		WriteError(w, http.StatusConflict, "persistence_rejected", err.Error())
	case errors.Is(err, domain.ErrNoVersions), errors.Is(err, domain.ErrUnknownDomain):
		s.logger.Error("Policy configuration error", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "configuration_error", err.Error())
	default:
		s.logger.Error("Session resolution failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "internal", "Session resolution failed")
	}
}
