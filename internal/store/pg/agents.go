package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"

	"codexbase.org/internal/agent"
	"codexbase.org/internal/perm"
)

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *agent.User) error {
	perms, err := json.Marshal(u.Permissions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into users(id, email, hashed_password, name, permissions, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Email, u.HashedPassword, u.Name, perms, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

const userColumns = `id, email, hashed_password, name, permissions, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*agent.User, error) {
	var (
		u     agent.User
		perms []byte
	)
	if err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.Name, &perms, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, agent.ErrNotFound
		}
		return nil, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &u.Permissions); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*agent.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*agent.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
}

func (s *userStore) GrantPermissions(ctx context.Context, id string, m perm.Mutation) error {
	return mutatePermissions(ctx, s.db, "users", id, m, false)
}

func (s *userStore) RevokePermissions(ctx context.Context, id string, m perm.Mutation) error {
	return mutatePermissions(ctx, s.db, "users", id, m, true)
}

// Group store --------------------------------------------------------------

type groupStore struct{ db *sql.DB }

func (s *groupStore) Create(ctx context.Context, g *agent.Group) error {
	members, err := json.Marshal(g.Members)
	if err != nil {
		return err
	}
	perms, err := json.Marshal(g.Permissions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into groups(id, name, description, source, members, permissions, created_at, updated_at)
		 values($1,$2,$3,nullif($4,''),$5,$6,$7,$8)`,
		g.ID, g.Name, g.Description, g.Source, members, perms, g.CreatedAt, g.UpdatedAt,
	)
	return err
}

const groupColumns = `id, name, description, coalesce(source,''), members, permissions, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*agent.Group, error) {
	var (
		g       agent.Group
		members []byte
		perms   []byte
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Source, &members, &perms, &g.CreatedAt, &g.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, agent.ErrNotFound
		}
		return nil, err
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &g.Members); err != nil {
			return nil, err
		}
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &g.Permissions); err != nil {
			return nil, err
		}
	}
	return &g, nil
}

func (s *groupStore) Find(ctx context.Context, id string) (*agent.Group, error) {
	return scanGroup(s.db.QueryRowContext(ctx,
		`select `+groupColumns+` from groups where id=$1`, id))
}

func (s *groupStore) FindByName(ctx context.Context, name string) (*agent.Group, error) {
	return scanGroup(s.db.QueryRowContext(ctx,
		`select `+groupColumns+` from groups where name=$1`, name))
}

func (s *groupStore) DirectMemberships(ctx context.Context, userID string) ([]string, error) {
	needle, err := json.Marshal([]string{userID})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select id from groups where members @> $1`, needle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *groupStore) Parent(ctx context.Context, groupID string) (string, error) {
	var source string
	err := s.db.QueryRowContext(ctx,
		`select coalesce(source,'') from groups where id=$1`, groupID).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", agent.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return source, nil
}

// AddMembers unions user ids into the member list under a row lock, so
// concurrent membership updates cannot lose each other's writes.
func (s *groupStore) AddMembers(ctx context.Context, groupID string, userIDs []string) error {
	return s.updateMembers(ctx, groupID, func(members []string) []string {
		for _, uid := range userIDs {
			if !slices.Contains(members, uid) {
				members = append(members, uid)
			}
		}
		return members
	})
}

func (s *groupStore) RemoveMembers(ctx context.Context, groupID string, userIDs []string) error {
	return s.updateMembers(ctx, groupID, func(members []string) []string {
		return slices.DeleteFunc(members, func(m string) bool {
			return slices.Contains(userIDs, m)
		})
	})
}

func (s *groupStore) updateMembers(ctx context.Context, groupID string, apply func([]string) []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`select members from groups where id=$1 for update`, groupID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.ErrNotFound
	}
	if err != nil {
		return err
	}
	var members []string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &members); err != nil {
			return err
		}
	}
	members = apply(members)
	if members == nil {
		members = []string{}
	}
	updated, err := json.Marshal(members)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update groups set members=$2, updated_at=now() where id=$1`, groupID, updated); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *groupStore) GrantPermissions(ctx context.Context, id string, m perm.Mutation) error {
	return mutatePermissions(ctx, s.db, "groups", id, m, false)
}

func (s *groupStore) RevokePermissions(ctx context.Context, id string, m perm.Mutation) error {
	return mutatePermissions(ctx, s.db, "groups", id, m, true)
}

// mutatePermissions applies a grant/revoke mutation to a permissions
// document inside a row-locked transaction: read for update, apply in Go,
// write back. The agent-set unions stay atomic under concurrency.
func mutatePermissions(ctx context.Context, db *sql.DB, table, id string, m perm.Mutation, revoke bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`select permissions from `+table+` where id=$1 for update`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return agent.ErrNotFound
	}
	if err != nil {
		return err
	}
	var perms perm.ObjectPermissions
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &perms); err != nil {
			return err
		}
	}
	if perms == nil {
		perms = perm.Template()
	}
	m.Apply(perms, revoke)
	updated, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`update `+table+` set permissions=$2, updated_at=now() where id=$1`, id, updated); err != nil {
		return err
	}
	return tx.Commit()
}
