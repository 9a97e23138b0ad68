package repo

import (
	"context"
	"database/sql"

	"belkon/internal/domain"
)

func (r Repo) InsertAction(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO actions(id,plan_id,condition_id,code,title,description,status,progress,start_date,target_date,completed_at,continuous,all_responsible,all_collaborating,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.PlanID, a.ConditionID, a.Code, a.Title, a.Description, a.Status, a.Progress,
		nullableStringPtr(a.StartDate), nullableStringPtr(a.TargetDate), nullableStringPtr(a.CompletedAt),
		boolInt(a.Continuous), boolInt(a.AllResponsible), boolInt(a.AllCollaborating), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	return r.replaceAssignments(ctx, tx, a)
}

func (r Repo) UpdateAction(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	res, err := tx.ExecContext(ctx, `UPDATE actions SET condition_id=?, code=?, title=?, description=?, status=?, progress=?, start_date=?, target_date=?, completed_at=?, continuous=?, all_responsible=?, all_collaborating=?, updated_at=? WHERE id=?`,
		a.ConditionID, a.Code, a.Title, a.Description, a.Status, a.Progress,
		nullableStringPtr(a.StartDate), nullableStringPtr(a.TargetDate), nullableStringPtr(a.CompletedAt),
		boolInt(a.Continuous), boolInt(a.AllResponsible), boolInt(a.AllCollaborating), a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM action_departments WHERE action_id=?`, a.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM action_units WHERE action_id=?`, a.ID); err != nil {
		return err
	}
	return r.replaceAssignments(ctx, tx, a)
}

func (r Repo) replaceAssignments(ctx context.Context, tx *sql.Tx, a domain.Action) error {
	insert := func(role string, deptIDs, units []string) error {
		for _, id := range deptIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO action_departments(action_id,department_id,role) VALUES (?,?,?)`, a.ID, id, role); err != nil {
				return err
			}
		}
		for _, unit := range units {
			if _, err := tx.ExecContext(ctx, `INSERT INTO action_units(action_id,unit,role) VALUES (?,?,?)`, a.ID, unit, role); err != nil {
				return err
			}
		}
		return nil
	}
	if !a.AllResponsible {
		if err := insert(RoleResponsible, a.ResponsibleIDs, a.ResponsibleUnits); err != nil {
			return err
		}
	}
	if !a.AllCollaborating {
		if err := insert(RoleCollaborating, a.CollaboratingIDs, a.CollaboratingUnits); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) DeleteAction(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanActionRow(scan func(dest ...any) error) (domain.Action, error) {
	var a domain.Action
	var start, target, completed sql.NullString
	var continuous, allResp, allCollab int
	err := scan(&a.ID, &a.PlanID, &a.ConditionID, &a.Code, &a.Title, &a.Description, &a.Status, &a.Progress,
		&start, &target, &completed, &continuous, &allResp, &allCollab, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return a, err
	}
	if start.Valid {
		a.StartDate = &start.String
	}
	if target.Valid {
		a.TargetDate = &target.String
	}
	if completed.Valid {
		a.CompletedAt = &completed.String
	}
	a.Continuous = continuous != 0
	a.AllResponsible = allResp != 0
	a.AllCollaborating = allCollab != 0
	return a, nil
}

const actionColumns = `id,plan_id,condition_id,code,title,description,status,progress,start_date,target_date,completed_at,continuous,all_responsible,all_collaborating,created_at,updated_at`

func (r Repo) GetAction(ctx context.Context, id string) (domain.Action, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id=?`, id)
	a, err := scanActionRow(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	byAction := map[string]*domain.Action{a.ID: &a}
	if err := r.loadAssignments(ctx, a.PlanID, byAction); err != nil {
		return a, err
	}
	return a, nil
}

// ListActions returns every action of a plan with assignments attached. The
// assignment tables are fetched in one query each, never per action.
func (r Repo) ListActions(ctx context.Context, planID string) ([]domain.Action, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE plan_id=? ORDER BY code`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Action
	byAction := map[string]*domain.Action{}
	for rows.Next() {
		a, err := scanActionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		byAction[res[i].ID] = &res[i]
	}
	if err := r.loadAssignments(ctx, planID, byAction); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) loadAssignments(ctx context.Context, planID string, byAction map[string]*domain.Action) error {
	deptRows, err := r.DB.QueryContext(ctx,
		`SELECT action_id,department_id,role FROM action_departments WHERE action_id IN (SELECT id FROM actions WHERE plan_id=?)`, planID)
	if err != nil {
		return err
	}
	defer deptRows.Close()
	for deptRows.Next() {
		var actionID, deptID, role string
		if err := deptRows.Scan(&actionID, &deptID, &role); err != nil {
			return err
		}
		a, ok := byAction[actionID]
		if !ok {
			continue
		}
		if role == RoleResponsible {
			a.ResponsibleIDs = append(a.ResponsibleIDs, deptID)
		} else {
			a.CollaboratingIDs = append(a.CollaboratingIDs, deptID)
		}
	}
	if err := deptRows.Err(); err != nil {
		return err
	}

	unitRows, err := r.DB.QueryContext(ctx,
		`SELECT action_id,unit,role FROM action_units WHERE action_id IN (SELECT id FROM actions WHERE plan_id=?)`, planID)
	if err != nil {
		return err
	}
	defer unitRows.Close()
	for unitRows.Next() {
		var actionID, unit, role string
		if err := unitRows.Scan(&actionID, &unit, &role); err != nil {
			return err
		}
		a, ok := byAction[actionID]
		if !ok {
			continue
		}
		if role == RoleResponsible {
			a.ResponsibleUnits = append(a.ResponsibleUnits, unit)
		} else {
			a.CollaboratingUnits = append(a.CollaboratingUnits, unit)
		}
	}
	return unitRows.Err()
}
