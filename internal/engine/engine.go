package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"belkon/internal/config"
	"belkon/internal/domain"
	"belkon/internal/events"
	"belkon/internal/repo"
)

// ModuleInternalControl is the module id every rollup and plan-data
// operation is licensed under.
const ModuleInternalControl = "ic_kontrol"

var (
	ErrNotEntitled    = errors.New("organization is not licensed for this module")
	ErrLicenseExpired = errors.New("module license has expired")
	ErrOrgSuspended   = errors.New("organization is suspended")
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) newID() string { return uuid.NewString() }

func (e Engine) timestamp() string { return e.now().UTC().Format(time.RFC3339) }

type OrgCreateOptions struct {
	ID      string
	Name    string
	ActorID string
}

func (e Engine) CreateOrg(ctx context.Context, opts OrgCreateOptions) (domain.Organization, error) {
	if opts.Name == "" {
		return domain.Organization{}, errors.New("name is required")
	}
	o := domain.Organization{
		ID:        opts.ID,
		Name:      opts.Name,
		Status:    "active",
		CreatedAt: e.timestamp(),
	}
	if o.ID == "" {
		o.ID = e.newID()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertOrg(ctx, tx, o); err != nil {
		return domain.Organization{}, fmt.Errorf("insert org: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "org.create", o.ID, "org", o.ID, opts.ActorID, events.EventPayload{"name": o.Name}); err != nil {
		return domain.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Organization{}, err
	}
	return o, nil
}

func (e Engine) UpdateOrg(ctx context.Context, id, name, status, actorID string) (domain.Organization, error) {
	if status != "" && status != "active" && status != "suspended" {
		return domain.Organization{}, fmt.Errorf("invalid org status %q", status)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Organization{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateOrg(ctx, tx, id, name, status); err != nil {
		return domain.Organization{}, err
	}
	payload := events.EventPayload{}
	if name != "" {
		payload["name"] = name
	}
	if status != "" {
		payload["status"] = status
	}
	if err := e.Events.Append(ctx, tx, "org.update", id, "org", id, actorID, payload); err != nil {
		return domain.Organization{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Organization{}, err
	}
	return e.Repo.GetOrg(ctx, id)
}

func (e Engine) DeleteOrg(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteOrg(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "org.delete", id, "org", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// SyncModuleCatalog upserts the configured module catalog into the modules
// table, so licenses can be granted against modules declared in belkon.yml
// and renamed modules pick up their new labels. Seeded modules absent from
// the config are left untouched. No-op without a config.
func (e Engine) SyncModuleCatalog(ctx context.Context) error {
	if e.Config == nil || len(e.Config.Modules.Catalog) == 0 {
		return nil
	}
	ids := make([]string, 0, len(e.Config.Modules.Catalog))
	for id := range e.Config.Modules.Catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, id := range ids {
		entry := e.Config.Modules.Catalog[id]
		m := domain.Module{ID: id, Name: entry.Name, Description: entry.Description}
		if err := e.Repo.UpsertModule(ctx, tx, m); err != nil {
			return fmt.Errorf("upsert module %s: %w", id, err)
		}
	}
	return tx.Commit()
}

type LicenseGrantOptions struct {
	OrgID     string
	ModuleID  string
	ExpiresAt string
	ActorID   string
}

func (e Engine) GrantLicense(ctx context.Context, opts LicenseGrantOptions) (domain.License, error) {
	if _, err := e.Repo.GetOrg(ctx, opts.OrgID); err != nil {
		return domain.License{}, err
	}
	if _, err := e.Repo.GetModule(ctx, opts.ModuleID); err != nil {
		return domain.License{}, err
	}
	if opts.ExpiresAt != "" {
		if _, err := time.Parse("2006-01-02", opts.ExpiresAt); err != nil {
			return domain.License{}, fmt.Errorf("invalid expires_at %q: %w", opts.ExpiresAt, err)
		}
	}
	l := domain.License{
		OrgID:     opts.OrgID,
		ModuleID:  opts.ModuleID,
		GrantedBy: opts.ActorID,
		GrantedAt: e.timestamp(),
	}
	if opts.ExpiresAt != "" {
		l.ExpiresAt = &opts.ExpiresAt
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.License{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertLicense(ctx, tx, l); err != nil {
		return domain.License{}, fmt.Errorf("upsert license: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "license.grant", l.OrgID, "license", l.ModuleID, opts.ActorID,
		events.EventPayload{"module": l.ModuleID, "expires_at": opts.ExpiresAt}); err != nil {
		return domain.License{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.License{}, err
	}
	return l, nil
}

func (e Engine) RevokeLicense(ctx context.Context, orgID, moduleID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteLicense(ctx, tx, orgID, moduleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "license.revoke", orgID, "license", moduleID, actorID,
		events.EventPayload{"module": moduleID}); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureEntitled verifies the org is active and holds a live license for the
// module. Every plan-data and report operation goes through this gate.
func (e Engine) EnsureEntitled(ctx context.Context, orgID, moduleID string) error {
	org, err := e.Repo.GetOrg(ctx, orgID)
	if err != nil {
		return err
	}
	if org.Status == "suspended" {
		return ErrOrgSuspended
	}
	l, err := e.Repo.GetLicense(ctx, orgID, moduleID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotEntitled
	}
	if err != nil {
		return err
	}
	if l.ExpiresAt != nil {
		expiry, err := time.Parse("2006-01-02", *l.ExpiresAt)
		if err != nil {
			return fmt.Errorf("invalid license expiry %q: %w", *l.ExpiresAt, err)
		}
		if e.now().UTC().After(expiry.AddDate(0, 0, 1)) {
			return ErrLicenseExpired
		}
	}
	return nil
}
