package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"belkon/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const (
	RoleResponsible   = "responsible"
	RoleCollaborating = "collaborating"
)

func (r Repo) InsertOrg(ctx context.Context, tx *sql.Tx, o domain.Organization) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO orgs(id,name,status,created_at) VALUES (?,?,?,?)`,
		o.ID, o.Name, o.Status, o.CreatedAt)
	return err
}

func (r Repo) GetOrg(ctx context.Context, id string) (domain.Organization, error) {
	var o domain.Organization
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,created_at FROM orgs WHERE id=?`, id).
		Scan(&o.ID, &o.Name, &o.Status, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

func (r Repo) ListOrgs(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM orgs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Status, &o.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) UpdateOrg(ctx context.Context, tx *sql.Tx, id, name, status string) error {
	var (
		fields []string
		args   []any
	)
	if name != "" {
		fields = append(fields, "name=?")
		args = append(args, name)
	}
	if status != "" {
		fields = append(fields, "status=?")
		args = append(args, status)
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE orgs SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteOrg(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM orgs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertDepartment(ctx context.Context, tx *sql.Tx, d domain.Department) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO departments(id,org_id,name,created_at) VALUES (?,?,?,?)`,
		d.ID, d.OrgID, d.Name, d.CreatedAt)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	var d domain.Department
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,created_at FROM departments WHERE id=?`, id).
		Scan(&d.ID, &d.OrgID, &d.Name, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDepartments(ctx context.Context, orgID string) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,created_at FROM departments WHERE org_id=? ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.OrgID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) UpdateDepartmentName(ctx context.Context, tx *sql.Tx, id, name string) error {
	res, err := tx.ExecContext(ctx, `UPDATE departments SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteDepartment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM departments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertPlan(ctx context.Context, tx *sql.Tx, p domain.ActionPlan) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO action_plans(id,org_id,name,year,active,created_at) VALUES (?,?,?,?,?,?)`,
		p.ID, p.OrgID, p.Name, p.Year, boolInt(p.Active), p.CreatedAt)
	return err
}

func (r Repo) GetPlan(ctx context.Context, id string) (domain.ActionPlan, error) {
	var p domain.ActionPlan
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,year,active,created_at FROM action_plans WHERE id=?`, id).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.Year, &active, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.Active = active != 0
	return p, err
}

func (r Repo) ListPlans(ctx context.Context, orgID string) ([]domain.ActionPlan, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,org_id,name,year,active,created_at FROM action_plans WHERE org_id=? ORDER BY year DESC, created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActionPlan
	for rows.Next() {
		var p domain.ActionPlan
		var active int
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Year, &active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Active = active != 0
		res = append(res, p)
	}
	return res, rows.Err()
}

// ActivatePlan marks one plan active and every other plan of the org
// inactive, keeping the one-active-plan invariant inside the transaction.
func (r Repo) ActivatePlan(ctx context.Context, tx *sql.Tx, orgID, planID string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE action_plans SET active=0 WHERE org_id=?`, orgID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE action_plans SET active=1 WHERE id=? AND org_id=?`, planID, orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ActivePlan(ctx context.Context, orgID string) (domain.ActionPlan, error) {
	var p domain.ActionPlan
	var active int
	err := r.DB.QueryRowContext(ctx, `SELECT id,org_id,name,year,active,created_at FROM action_plans WHERE org_id=? AND active=1`, orgID).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.Year, &active, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.Active = active != 0
	return p, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
