package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"codexbase.org/internal/audit"
	"codexbase.org/internal/oauth"
	"codexbase.org/internal/obs"
)

// handleToken is the RFC 6749 token endpoint. Requests are form-encoded;
// client credentials travel in the body (client_secret_post).
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, oauth.ErrInvalidRequest.WithDescription("malformed form body"))
		return
	}
	req := &oauth.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		Scope:        r.PostFormValue("scope"),
	}
	if id, secret, ok := r.BasicAuth(); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}

	resp, err := a.auth.Token(r.Context(), req)
	if err != nil {
		var oerr *oauth.Error
		if errors.As(err, &oerr) {
			obs.ObserveTokenError(oerr.Code)
		}
		writeOAuthError(w, err)
		return
	}
	obs.ObserveTokenIssued(req.GrantType)
	_ = audit.LogEvent(r.Context(), "oauth.token.issued", map[string]any{
		"client_id":  req.ClientID,
		"grant_type": req.GrantType,
		"scope":      resp.Scope,
	})
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// handleAuthorize runs the consent step for the code and implicit flows. The
// resource owner is the bearer principal; the response is the redirect target
// the UI should send the browser to.
func (a *API) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, oauth.ErrInvalidRequest.WithDescription("malformed form body"))
		return
	}
	req := &oauth.AuthorizeRequest{
		ResponseType: r.PostFormValue("response_type"),
		ClientID:     r.PostFormValue("client_id"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		Scope:        r.PostFormValue("scope"),
		State:        r.PostFormValue("state"),
		UserID:       p.UserID,
	}

	res, err := a.auth.Authorize(r.Context(), req)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "oauth.authorize", map[string]any{
		"client_id":     req.ClientID,
		"response_type": req.ResponseType,
	})
	writeJSON(w, http.StatusOK, authorizeResponse(res))
}

// authorizeResponse folds the grant into the redirect URI: query for the
// code flow, fragment for the implicit flow.
func authorizeResponse(res *oauth.AuthorizeResult) map[string]any {
	out := map[string]any{"redirect_uri": res.RedirectURI}
	if res.Code != "" {
		q := url.Values{"code": {res.Code}}
		if res.State != "" {
			q.Set("state", res.State)
		}
		out["code"] = res.Code
		out["location"] = res.RedirectURI + "?" + q.Encode()
		return out
	}
	if res.Token != nil {
		f := url.Values{
			"access_token": {res.Token.AccessToken},
			"token_type":   {res.Token.TokenType},
		}
		if res.State != "" {
			f.Set("state", res.State)
		}
		out["access_token"] = res.Token.AccessToken
		out["location"] = res.RedirectURI + "#" + f.Encode()
	}
	return out
}

// handleRevoke is the RFC 7009 revocation endpoint. The client must
// authenticate; unknown tokens still answer 200.
func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, oauth.ErrInvalidRequest.WithDescription("malformed form body"))
		return
	}
	token := r.PostFormValue("token")
	if token == "" {
		writeOAuthError(w, oauth.ErrInvalidRequest.WithDescription("missing token parameter"))
		return
	}
	if err := a.auth.RevokeToken(r.Context(), token, r.PostFormValue("token_type_hint")); err != nil {
		writeOAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "oauth.token.revoked", nil)
	w.WriteHeader(http.StatusOK)
}

// handleTokenInfo introspects the access token named in the query.
func (a *API) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token, _ = extractBearerToken(r.Header.Get(authHeader))
	}
	info, err := a.auth.ValidateBearer(r.Context(), token)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type createClientRequest struct {
	Name          string   `json:"name"`
	RedirectURIs  []string `json:"redirect_uris"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types"`
	Scope         string   `json:"scope"`
	Public        bool     `json:"public"`
}

type clientResponse struct {
	ID            string   `json:"id"`
	ClientID      string   `json:"client_id"`
	ClientSecret  string   `json:"client_secret,omitempty"`
	Name          string   `json:"name,omitempty"`
	GrantTypes    []string `json:"grant_types"`
	ResponseTypes []string `json:"response_types,omitempty"`
	RedirectURIs  []string `json:"redirect_uris,omitempty"`
	Scope         string   `json:"scope,omitempty"`
}

func (a *API) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	var req createClientRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := a.auth.CreateClient(r.Context(), oauth.NewClientParams{
		Name:          req.Name,
		RedirectURIs:  req.RedirectURIs,
		GrantTypes:    req.GrantTypes,
		ResponseTypes: req.ResponseTypes,
		Scope:         req.Scope,
		Public:        req.Public,
		CreatorUserID: p.UserID,
	})
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "oauth.client.created", map[string]any{
		"client_id":   client.ClientID,
		"grant_types": client.GrantTypes,
	})
	// The secret is shown exactly once, in this response.
	writeJSON(w, http.StatusCreated, clientResponse{
		ID:            client.ID,
		ClientID:      client.ClientID,
		ClientSecret:  client.ClientSecret,
		Name:          client.Name,
		GrantTypes:    client.GrantTypes,
		ResponseTypes: client.ResponseTypes,
		RedirectURIs:  client.RedirectURIs,
		Scope:         client.Scope,
	})
}

func (a *API) handleListClients(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	clients, err := a.auth.ListClients(r.Context(), p.UserID)
	if err != nil {
		writeOAuthError(w, err)
		return
	}
	out := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientResponse{
			ID:            c.ID,
			ClientID:      c.ClientID,
			Name:          c.Name,
			GrantTypes:    c.GrantTypes,
			ResponseTypes: c.ResponseTypes,
			RedirectURIs:  c.RedirectURIs,
			Scope:         c.Scope,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": out})
}

func (a *API) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	p, ok := a.principal(r.Context())
	if !requireUser(w, p, ok) {
		return
	}
	id := r.PathValue("id")
	if err := a.auth.DeleteClient(r.Context(), id, p.UserID); err != nil {
		if errors.Is(err, oauth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeOAuthError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "oauth.client.deleted", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
