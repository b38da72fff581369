package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"codexbase.org/internal/oauth"
	"codexbase.org/internal/perm"
)

// Client store --------------------------------------------------------------

type clientStore struct{ db *sql.DB }

func (s *clientStore) Create(ctx context.Context, c *oauth.Client) error {
	grantTypes, err := json.Marshal(c.GrantTypes)
	if err != nil {
		return err
	}
	responseTypes, err := json.Marshal(c.ResponseTypes)
	if err != nil {
		return err
	}
	redirectURIs, err := json.Marshal(c.RedirectURIs)
	if err != nil {
		return err
	}
	perms, err := json.Marshal(c.Permissions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into oauth_clients(id, client_id, client_secret, name, user_id, grant_types, response_types,
		   redirect_uris, scope, token_endpoint_auth_method, permissions, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.ClientID, c.ClientSecret, c.Name, c.UserID, grantTypes, responseTypes,
		redirectURIs, c.Scope, c.TokenEndpointAuthMethod, perms, c.CreatedAt,
	)
	return err
}

const clientColumns = `id, client_id, client_secret, name, user_id, grant_types, response_types,
	redirect_uris, scope, token_endpoint_auth_method, permissions, created_at`

func scanClient(row interface{ Scan(...any) error }) (*oauth.Client, error) {
	var (
		c             oauth.Client
		grantTypes    []byte
		responseTypes []byte
		redirectURIs  []byte
		perms         []byte
	)
	err := row.Scan(&c.ID, &c.ClientID, &c.ClientSecret, &c.Name, &c.UserID, &grantTypes, &responseTypes,
		&redirectURIs, &c.Scope, &c.TokenEndpointAuthMethod, &perms, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(grantTypes) > 0 {
		if err := json.Unmarshal(grantTypes, &c.GrantTypes); err != nil {
			return nil, err
		}
	}
	if len(responseTypes) > 0 {
		if err := json.Unmarshal(responseTypes, &c.ResponseTypes); err != nil {
			return nil, err
		}
	}
	if len(redirectURIs) > 0 {
		if err := json.Unmarshal(redirectURIs, &c.RedirectURIs); err != nil {
			return nil, err
		}
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &c.Permissions); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (s *clientStore) Find(ctx context.Context, id string) (*oauth.Client, error) {
	return scanClient(s.db.QueryRowContext(ctx,
		`select `+clientColumns+` from oauth_clients where id=$1`, id))
}

func (s *clientStore) FindByClientID(ctx context.Context, clientID string) (*oauth.Client, error) {
	return scanClient(s.db.QueryRowContext(ctx,
		`select `+clientColumns+` from oauth_clients where client_id=$1`, clientID))
}

func (s *clientStore) ListByOwner(ctx context.Context, userID string) ([]*oauth.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+clientColumns+` from oauth_clients where user_id=$1 order by created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*oauth.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *clientStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from oauth_clients where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return oauth.ErrNotFound
	}
	return nil
}

// Code store ----------------------------------------------------------------

type codeStore struct{ db *sql.DB }

func (s *codeStore) Create(ctx context.Context, c *oauth.AuthorizationCode) error {
	_, err := s.db.ExecContext(ctx,
		`insert into oauth_codes(id, code, client_id, user_id, redirect_uri, scope, auth_time)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Code, c.ClientID, c.UserID, c.RedirectURI, c.Scope, c.AuthTime,
	)
	return err
}

const codeColumns = `id, code, client_id, user_id, redirect_uri, scope, auth_time`

func scanCode(row interface{ Scan(...any) error }) (*oauth.AuthorizationCode, error) {
	var c oauth.AuthorizationCode
	err := row.Scan(&c.ID, &c.Code, &c.ClientID, &c.UserID, &c.RedirectURI, &c.Scope, &c.AuthTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *codeStore) FindByCode(ctx context.Context, code, clientID string) (*oauth.AuthorizationCode, error) {
	return scanCode(s.db.QueryRowContext(ctx,
		`select `+codeColumns+` from oauth_codes where code=$1 and client_id=$2`, code, clientID))
}

func (s *codeStore) FindActive(ctx context.Context, clientID, userID, redirectURI, scope string) (*oauth.AuthorizationCode, error) {
	return scanCode(s.db.QueryRowContext(ctx,
		`select `+codeColumns+` from oauth_codes
		 where client_id=$1 and user_id=$2 and redirect_uri=$3 and scope=$4
		 order by auth_time desc limit 1`,
		clientID, userID, redirectURI, scope))
}

func (s *codeStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from oauth_codes where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return oauth.ErrNotFound
	}
	return nil
}

// Token store ---------------------------------------------------------------

type tokenStore struct{ db *sql.DB }

func (s *tokenStore) Create(ctx context.Context, t *oauth.Token) error {
	_, err := s.db.ExecContext(ctx,
		`insert into oauth_tokens(id, access_token, refresh_token, token_type, client_id, user_id,
		   scope, issued_at, expires_in, revoked)
		 values($1,$2,nullif($3,''),$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.AccessToken, t.RefreshToken, t.TokenType, t.ClientID, t.UserID,
		t.Scope, t.IssuedAt, t.ExpiresIn, t.Revoked,
	)
	return err
}

const tokenColumns = `id, access_token, coalesce(refresh_token,''), token_type, client_id, user_id,
	scope, issued_at, expires_in, revoked`

func scanToken(row interface{ Scan(...any) error }) (*oauth.Token, error) {
	var t oauth.Token
	err := row.Scan(&t.ID, &t.AccessToken, &t.RefreshToken, &t.TokenType, &t.ClientID, &t.UserID,
		&t.Scope, &t.IssuedAt, &t.ExpiresIn, &t.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *tokenStore) FindByAccess(ctx context.Context, accessToken string) (*oauth.Token, error) {
	return scanToken(s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from oauth_tokens where access_token=$1`, accessToken))
}

func (s *tokenStore) FindByRefresh(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	if refreshToken == "" {
		return nil, oauth.ErrNotFound
	}
	return scanToken(s.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from oauth_tokens where refresh_token=$1`, refreshToken))
}

func (s *tokenStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`update oauth_tokens set revoked=true where id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return oauth.ErrNotFound
	}
	return nil
}

// Master config store -------------------------------------------------------

type masterStore struct{ db *sql.DB }

func (s *masterStore) Get(ctx context.Context) (*oauth.MasterConfig, error) {
	var (
		m          oauth.MasterConfig
		privileges []byte
		perms      []byte
	)
	err := s.db.QueryRowContext(ctx,
		`select id, grant_privileges, permissions from master_config limit 1`).
		Scan(&m.ID, &privileges, &perms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(privileges) > 0 {
		if err := json.Unmarshal(privileges, &m.GrantPrivileges); err != nil {
			return nil, err
		}
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &m.Permissions); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// Put replaces the singleton row.
func (s *masterStore) Put(ctx context.Context, m *oauth.MasterConfig) error {
	privileges, err := json.Marshal(m.GrantPrivileges)
	if err != nil {
		return err
	}
	if m.Permissions == nil {
		m.Permissions = perm.Template()
	}
	perms, err := json.Marshal(m.Permissions)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from master_config`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`insert into master_config(id, grant_privileges, permissions) values($1,$2,$3)`,
		m.ID, privileges, perms); err != nil {
		return err
	}
	return tx.Commit()
}
