// Package httpapi is the HTTP surface of the trust service: OAuth2 endpoints,
// agent and permission management, health and metrics.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/oauth"
	"codexbase.org/internal/obs"
)

const serviceName = "codexbase-trust"

// ReadyProbe is a simple readiness check (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	agents *agent.Service
	auth   *oauth.Server
}

func New(rp ReadyProbe, version string, agents *agent.Service, auth *oauth.Server) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		agents:     agents,
		auth:       auth,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// OAuth2 endpoints
	a.mux.HandleFunc("POST /oauth/token", a.handleToken)
	a.mux.HandleFunc("POST /oauth/authorize", a.handleAuthorize)
	a.mux.HandleFunc("POST /oauth/revoke", a.handleRevoke)
	a.mux.HandleFunc("GET /oauth/tokeninfo", a.handleTokenInfo)

	// Client registry
	a.mux.HandleFunc("POST /v1/clients", a.handleCreateClient)
	a.mux.HandleFunc("GET /v1/clients", a.handleListClients)
	a.mux.HandleFunc("DELETE /v1/clients/{id}", a.handleDeleteClient)

	// Agents
	a.mux.HandleFunc("POST /v1/users", a.handleCreateUser)
	a.mux.HandleFunc("GET /v1/users/{id}", a.handleGetUser)
	a.mux.HandleFunc("POST /v1/groups", a.handleCreateGroup)
	a.mux.HandleFunc("GET /v1/groups/{id}", a.handleGetGroup)
	a.mux.HandleFunc("POST /v1/groups/{id}/members", a.handleAddMembers)
	a.mux.HandleFunc("DELETE /v1/groups/{id}/members", a.handleRemoveMembers)

	// Permissions
	a.mux.HandleFunc("POST /v1/permissions/grant", a.handleGrant)
	a.mux.HandleFunc("POST /v1/permissions/revoke", a.handleRevokePerms)
	a.mux.HandleFunc("GET /v1/permissions/resolve", a.handleResolve)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with bearer auth and metrics instrumentation.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// writeOAuthError maps protocol errors to the RFC 6749 JSON shape.
// invalid_client answers 401, everything else 400.
func writeOAuthError(w http.ResponseWriter, err error) {
	var oerr *oauth.Error
	if !errors.As(err, &oerr) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	code := http.StatusBadRequest
	switch {
	case errors.Is(oerr, oauth.ErrInvalidClient):
		code = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
	case errors.Is(oerr, oauth.ErrInvalidToken):
		code = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	body := map[string]any{"error": oerr.Code}
	if oerr.Description != "" {
		body["error_description"] = oerr.Description
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, code, body)
}

// writeAgentError maps agent-layer sentinels to HTTP statuses.
func writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, agent.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, agent.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, agent.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, agent.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, agent.ErrHierarchyCycle):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
