package repo

import (
	"context"
	"database/sql"

	"belkon/internal/domain"
)

func (r Repo) InsertComponent(ctx context.Context, tx *sql.Tx, c domain.Component) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO components(id,code,name) VALUES (?,?,?)`, c.ID, c.Code, c.Name)
	return err
}

func (r Repo) GetComponent(ctx context.Context, id string) (domain.Component, error) {
	var c domain.Component
	err := r.DB.QueryRowContext(ctx, `SELECT id,code,name FROM components WHERE id=?`, id).
		Scan(&c.ID, &c.Code, &c.Name)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) ListComponents(ctx context.Context) ([]domain.Component, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,code,name FROM components ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Component
	for rows.Next() {
		var c domain.Component
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertStandard(ctx context.Context, tx *sql.Tx, s domain.Standard) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO standards(id,component_id,code,name) VALUES (?,?,?,?)`,
		s.ID, s.ComponentID, s.Code, s.Name)
	return err
}

func (r Repo) GetStandard(ctx context.Context, id string) (domain.Standard, error) {
	var s domain.Standard
	err := r.DB.QueryRowContext(ctx, `SELECT id,component_id,code,name FROM standards WHERE id=?`, id).
		Scan(&s.ID, &s.ComponentID, &s.Code, &s.Name)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListStandards(ctx context.Context) ([]domain.Standard, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,component_id,code,name FROM standards ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Standard
	for rows.Next() {
		var s domain.Standard
		if err := rows.Scan(&s.ID, &s.ComponentID, &s.Code, &s.Name); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertCondition(ctx context.Context, tx *sql.Tx, c domain.Condition) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO conditions(id,standard_id,code,description,reasonable_assurance) VALUES (?,?,?,?,?)`,
		c.ID, c.StandardID, c.Code, c.Description, boolInt(c.ReasonableAssurance))
	return err
}

func (r Repo) GetCondition(ctx context.Context, id string) (domain.Condition, error) {
	var c domain.Condition
	var assurance int
	err := r.DB.QueryRowContext(ctx, `SELECT id,standard_id,code,description,reasonable_assurance FROM conditions WHERE id=?`, id).
		Scan(&c.ID, &c.StandardID, &c.Code, &c.Description, &assurance)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.ReasonableAssurance = assurance != 0
	return c, err
}

func (r Repo) ListConditions(ctx context.Context) ([]domain.Condition, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,standard_id,code,description,reasonable_assurance FROM conditions ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Condition
	for rows.Next() {
		var c domain.Condition
		var assurance int
		if err := rows.Scan(&c.ID, &c.StandardID, &c.Code, &c.Description, &assurance); err != nil {
			return nil, err
		}
		c.ReasonableAssurance = assurance != 0
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpsertSituation replaces the per-(condition, plan) narrative.
func (r Repo) UpsertSituation(ctx context.Context, tx *sql.Tx, s domain.Situation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO situations(condition_id,plan_id,narrative,updated_at) VALUES (?,?,?,?)
ON CONFLICT(condition_id,plan_id) DO UPDATE SET narrative=excluded.narrative, updated_at=excluded.updated_at`,
		s.ConditionID, s.PlanID, s.Narrative, s.UpdatedAt)
	return err
}

func (r Repo) ListSituations(ctx context.Context, planID string) ([]domain.Situation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT condition_id,plan_id,narrative,updated_at FROM situations WHERE plan_id=?`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Situation
	for rows.Next() {
		var s domain.Situation
		if err := rows.Scan(&s.ConditionID, &s.PlanID, &s.Narrative, &s.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
