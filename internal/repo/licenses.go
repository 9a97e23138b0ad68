package repo

import (
	"context"
	"database/sql"

	"belkon/internal/domain"
)

func (r Repo) ListModules(ctx context.Context) ([]domain.Module, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,description FROM modules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Module
	for rows.Next() {
		var m domain.Module
		if err := rows.Scan(&m.ID, &m.Name, &m.Description); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) GetModule(ctx context.Context, id string) (domain.Module, error) {
	var m domain.Module
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,description FROM modules WHERE id=?`, id).
		Scan(&m.ID, &m.Name, &m.Description)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	return m, err
}

// UpsertModule inserts a catalog module or refreshes its name and
// description in place.
func (r Repo) UpsertModule(ctx context.Context, tx *sql.Tx, m domain.Module) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO modules(id,name,description) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description`,
		m.ID, m.Name, m.Description)
	return err
}

// UpsertLicense grants or renews a module license for an org.
func (r Repo) UpsertLicense(ctx context.Context, tx *sql.Tx, l domain.License) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO licenses(org_id,module_id,granted_by,granted_at,expires_at) VALUES (?,?,?,?,?)
ON CONFLICT(org_id,module_id) DO UPDATE SET granted_by=excluded.granted_by, granted_at=excluded.granted_at, expires_at=excluded.expires_at`,
		l.OrgID, l.ModuleID, l.GrantedBy, l.GrantedAt, nullableStringPtr(l.ExpiresAt))
	return err
}

func (r Repo) DeleteLicense(ctx context.Context, tx *sql.Tx, orgID, moduleID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM licenses WHERE org_id=? AND module_id=?`, orgID, moduleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetLicense(ctx context.Context, orgID, moduleID string) (domain.License, error) {
	var l domain.License
	var expires sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT org_id,module_id,granted_by,granted_at,expires_at FROM licenses WHERE org_id=? AND module_id=?`, orgID, moduleID).
		Scan(&l.OrgID, &l.ModuleID, &l.GrantedBy, &l.GrantedAt, &expires)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if expires.Valid {
		l.ExpiresAt = &expires.String
	}
	return l, err
}

func (r Repo) ListLicenses(ctx context.Context, orgID string) ([]domain.License, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT org_id,module_id,granted_by,granted_at,expires_at FROM licenses WHERE org_id=? ORDER BY module_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.License
	for rows.Next() {
		var l domain.License
		var expires sql.NullString
		if err := rows.Scan(&l.OrgID, &l.ModuleID, &l.GrantedBy, &l.GrantedAt, &expires); err != nil {
			return nil, err
		}
		if expires.Valid {
			l.ExpiresAt = &expires.String
		}
		res = append(res, l)
	}
	return res, rows.Err()
}
