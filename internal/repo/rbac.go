package repo

import (
	"context"
	"database/sql"
)

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, actorID, name, now string) error {
	if name == "" {
		name = actorID
	}
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO actors(id, name, created_at) VALUES (?,?,?)`, actorID, name, now)
	return err
}

// SetSuperAdmin flips the actor's super-admin flag.
func (r Repo) SetSuperAdmin(ctx context.Context, tx *sql.Tx, actorID string, super bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE actors SET super_admin=? WHERE id=?`, boolInt(super), actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsSuperAdmin reports whether the actor carries the super-admin flag.
func (r Repo) IsSuperAdmin(ctx context.Context, actorID string) (bool, error) {
	var super int
	err := r.DB.QueryRowContext(ctx, `SELECT super_admin FROM actors WHERE id=?`, actorID).Scan(&super)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return super != 0, nil
}

func (r Repo) AssignOrgRole(ctx context.Context, tx *sql.Tx, actorID, orgID, role string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO org_roles(actor_id, org_id, role) VALUES (?,?,?)
ON CONFLICT(actor_id, org_id) DO UPDATE SET role=excluded.role`, actorID, orgID, role)
	return err
}

func (r Repo) RevokeOrgRole(ctx context.Context, tx *sql.Tx, actorID, orgID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM org_roles WHERE actor_id=? AND org_id=?`, actorID, orgID)
	return err
}

// OrgRole returns the actor's role in the org, or "" when none is assigned.
func (r Repo) OrgRole(ctx context.Context, actorID, orgID string) (string, error) {
	var role string
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM org_roles WHERE actor_id=? AND org_id=?`, actorID, orgID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return role, err
}
