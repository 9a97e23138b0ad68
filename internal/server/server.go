package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"belkon/internal/domain"
	"belkon/internal/engine"
	"belkon/internal/export"
	"belkon/internal/repo"
	"belkon/internal/rollup"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_entitled"`
	Message string         `json:"message" example:"organization is not licensed for this module"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Belkon API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Belkon API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerOrgs(group, cfg.Engine)
	registerLicenses(group, cfg.Engine)
	registerDepartments(group, cfg.Engine)
	registerPlans(group, cfg.Engine)
	registerTaxonomy(group, cfg.Engine)
	registerActions(group, cfg.Engine)
	registerRollup(group, cfg.Engine, cfg.Logger)
	registerEvents(group, cfg.Engine)
	registerExports(router, basePath, cfg.Engine, cfg.Logger)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine, cfg.Logger)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrNotEntitled):
		return newAPIError(http.StatusForbidden, "not_entitled", err.Error(), nil)
	case errors.Is(err, engine.ErrLicenseExpired):
		return newAPIError(http.StatusForbidden, "license_expired", err.Error(), nil)
	case errors.Is(err, engine.ErrOrgSuspended):
		return newAPIError(http.StatusForbidden, "org_suspended", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "required"),
		strings.Contains(lowered, "unknown"),
		strings.Contains(lowered, "out of range"),
		strings.Contains(lowered, "excludes"),
		strings.Contains(lowered, "not in organization"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

// requireSuperAdmin gates tenancy provisioning. The JWT claim short-circuits;
// API-key principals already carry the DB flag.
func requireSuperAdmin(ctx context.Context) huma.StatusError {
	p, ok := principalFromContext(ctx)
	if !ok || p.ActorID == "" {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	if !p.SuperAdmin {
		return newAPIError(http.StatusForbidden, "forbidden", "super-admin required", nil)
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Belkon API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerOrgs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-org",
		Method:        http.MethodPost,
		Path:          "/orgs",
		Summary:       "Create organization",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateOrgRequest `json:"body"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		id := ""
		if input.Body.ID != nil {
			id = *input.Body.ID
		}
		o, err := e.CreateOrg(ctx, engine.OrgCreateOptions{ID: id, Name: input.Body.Name, ActorID: actorID})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-orgs",
		Method:      http.MethodGet,
		Path:        "/orgs",
		Summary:     "List organizations",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Organization `json:"body"`
	}, error) {
		items, err := e.Repo.ListOrgs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Organization `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-org",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}",
		Summary:     "Get organization",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string `path:"org_id"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		o, err := e.Repo.GetOrg(ctx, input.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-org",
		Method:      http.MethodPatch,
		Path:        "/orgs/{org_id}",
		Summary:     "Update organization",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string           `path:"org_id"`
		Body  UpdateOrgRequest `json:"body"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		name, status := "", ""
		if input.Body.Name != nil {
			name = *input.Body.Name
		}
		if input.Body.Status != nil {
			status = *input.Body.Status
		}
		o, err := e.UpdateOrg(ctx, input.OrgID, name, status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-org",
		Method:      http.MethodDelete,
		Path:        "/orgs/{org_id}",
		Summary:     "Delete organization",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string `path:"org_id"`
	}) (*struct{}, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteOrg(ctx, input.OrgID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerLicenses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-modules",
		Method:      http.MethodGet,
		Path:        "/modules",
		Summary:     "List module catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Module `json:"body"`
	}, error) {
		items, err := e.Repo.ListModules(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Module `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-licenses",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}/licenses",
		Summary:     "List organization licenses",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string `path:"org_id"`
	}) (*struct {
		Body []domain.License `json:"body"`
	}, error) {
		if _, err := e.Repo.GetOrg(ctx, input.OrgID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListLicenses(ctx, input.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.License `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "grant-license",
		Method:        http.MethodPut,
		Path:          "/orgs/{org_id}/licenses",
		Summary:       "Grant module license",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string              `path:"org_id"`
		Body  GrantLicenseRequest `json:"body"`
	}) (*struct {
		Body domain.License `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		expires := ""
		if input.Body.ExpiresAt != nil {
			expires = *input.Body.ExpiresAt
		}
		l, err := e.GrantLicense(ctx, engine.LicenseGrantOptions{
			OrgID:     input.OrgID,
			ModuleID:  input.Body.ModuleID,
			ExpiresAt: expires,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.License `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-license",
		Method:      http.MethodDelete,
		Path:        "/orgs/{org_id}/licenses/{module_id}",
		Summary:     "Revoke module license",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID    string `path:"org_id"`
		ModuleID string `path:"module_id"`
	}) (*struct{}, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeLicense(ctx, input.OrgID, input.ModuleID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDepartments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-department",
		Method:        http.MethodPost,
		Path:          "/orgs/{org_id}/departments",
		Summary:       "Create department",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string                  `path:"org_id"`
		Body  CreateDepartmentRequest `json:"body"`
	}) (*struct {
		Body domain.Department `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.CreateDepartment(ctx, input.OrgID, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Department `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}/departments",
		Summary:     "List departments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string `path:"org_id"`
	}) (*struct {
		Body []domain.Department `json:"body"`
	}, error) {
		if _, err := e.Repo.GetOrg(ctx, input.OrgID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListDepartments(ctx, input.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Department `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rename-department",
		Method:      http.MethodPatch,
		Path:        "/orgs/{org_id}/departments/{department_id}",
		Summary:     "Rename department",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID        string                  `path:"org_id"`
		DepartmentID string                  `path:"department_id"`
		Body         CreateDepartmentRequest `json:"body"`
	}) (*struct {
		Body domain.Department `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RenameDepartment(ctx, input.OrgID, input.DepartmentID, input.Body.Name, actorID); err != nil {
			return nil, handleError(err)
		}
		d, err := e.Repo.GetDepartment(ctx, input.DepartmentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Department `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-department",
		Method:      http.MethodDelete,
		Path:        "/orgs/{org_id}/departments/{department_id}",
		Summary:     "Delete department",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID        string `path:"org_id"`
		DepartmentID string `path:"department_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteDepartment(ctx, input.OrgID, input.DepartmentID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerPlans(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-plan",
		Method:        http.MethodPost,
		Path:          "/orgs/{org_id}/plans",
		Summary:       "Create action plan",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string            `path:"org_id"`
		Body  CreatePlanRequest `json:"body"`
	}) (*struct {
		Body domain.ActionPlan `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
			OrgID:    input.OrgID,
			Name:     input.Body.Name,
			Year:     input.Body.Year,
			Activate: input.Body.Activate,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ActionPlan `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}/plans",
		Summary:     "List action plans",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string `path:"org_id"`
	}) (*struct {
		Body []domain.ActionPlan `json:"body"`
	}, error) {
		if _, err := e.Repo.GetOrg(ctx, input.OrgID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListPlans(ctx, input.OrgID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ActionPlan `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "activate-plan",
		Method:      http.MethodPost,
		Path:        "/orgs/{org_id}/plans/{plan_id}/activate",
		Summary:     "Activate action plan",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID  string `path:"org_id"`
		PlanID string `path:"plan_id"`
	}) (*struct {
		Body domain.ActionPlan `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ActivatePlan(ctx, input.OrgID, input.PlanID, actorID); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetPlan(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ActionPlan `json:"body"`
		}{Body: p}, nil
	})
}

func registerTaxonomy(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-components",
		Method:      http.MethodGet,
		Path:        "/components",
		Summary:     "List taxonomy components",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Component `json:"body"`
	}, error) {
		items, err := e.Repo.ListComponents(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Component `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-component",
		Method:        http.MethodPost,
		Path:          "/components",
		Summary:       "Create taxonomy component",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateComponentRequest `json:"body"`
	}) (*struct {
		Body domain.Component `json:"body"`
	}, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateComponent(ctx, input.Body.Code, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Component `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-standards",
		Method:      http.MethodGet,
		Path:        "/standards",
		Summary:     "List taxonomy standards",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Standard `json:"body"`
	}, error) {
		items, err := e.Repo.ListStandards(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Standard `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-standard",
		Method:        http.MethodPost,
		Path:          "/standards",
		Summary:       "Create taxonomy standard",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateStandardRequest `json:"body"`
	}) (*struct {
		Body domain.Standard `json:"body"`
	}, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateStandard(ctx, input.Body.ComponentID, input.Body.Code, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Standard `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conditions",
		Method:      http.MethodGet,
		Path:        "/conditions",
		Summary:     "List taxonomy conditions",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Condition `json:"body"`
	}, error) {
		items, err := e.Repo.ListConditions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Condition `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-condition",
		Method:        http.MethodPost,
		Path:          "/conditions",
		Summary:       "Create taxonomy condition",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateConditionRequest `json:"body"`
	}) (*struct {
		Body domain.Condition `json:"body"`
	}, error) {
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCondition(ctx, engine.ConditionCreateOptions{
			StandardID:          input.Body.StandardID,
			Code:                input.Body.Code,
			Description:         input.Body.Description,
			ReasonableAssurance: input.Body.ReasonableAssurance,
			ActorID:             actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Condition `json:"body"`
		}{Body: c}, nil
	})
}

func registerActions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "upsert-situation",
		Method:      http.MethodPut,
		Path:        "/orgs/{org_id}/plans/{plan_id}/situations",
		Summary:     "Upsert condition situation narrative",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID  string                 `path:"org_id"`
		PlanID string                 `path:"plan_id"`
		Body   UpsertSituationRequest `json:"body"`
	}) (*struct {
		Body domain.Situation `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpsertSituation(ctx, input.OrgID, input.PlanID, input.Body.ConditionID, input.Body.Narrative, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Situation `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-action",
		Method:        http.MethodPost,
		Path:          "/orgs/{org_id}/plans/{plan_id}/actions",
		Summary:       "Create action",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID  string        `path:"org_id"`
		PlanID string        `path:"plan_id"`
		Body   ActionRequest `json:"body"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAction(ctx, input.Body.toOptions(input.OrgID, input.PlanID, actorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}/plans/{plan_id}/actions",
		Summary:     "List plan actions",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID  string `path:"org_id"`
		PlanID string `path:"plan_id"`
	}) (*struct {
		Body []domain.Action `json:"body"`
	}, error) {
		if _, err := e.Repo.GetPlan(ctx, input.PlanID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListActions(ctx, input.PlanID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Action `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-action",
		Method:      http.MethodPatch,
		Path:        "/orgs/{org_id}/actions/{action_id}",
		Summary:     "Update action",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID    string        `path:"org_id"`
		ActionID string        `path:"action_id"`
		Body     ActionRequest `json:"body"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateAction(ctx, input.ActionID, input.Body.toOptions(input.OrgID, "", actorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-action",
		Method:      http.MethodDelete,
		Path:        "/orgs/{org_id}/actions/{action_id}",
		Summary:     "Delete action",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID    string `path:"org_id"`
		ActionID string `path:"action_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAction(ctx, input.OrgID, input.ActionID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

// rollupQuery mirrors the filter and sort controls of the rollup view.
type rollupQuery struct {
	OrgID           string `path:"org_id"`
	PlanID          string `path:"plan_id"`
	ComponentID     string `query:"component_id"`
	StandardID      string `query:"standard_id"`
	ResponsibleID   string `query:"responsible_id"`
	CollaboratingID string `query:"collaborating_id"`
	Search          string `query:"search"`
	Status          string `query:"status"`
	Sort            string `query:"sort" enum:"delay,code,standard,target_date,progress"`
	Direction       string `query:"direction" enum:"asc,desc"`
}

func (q rollupQuery) reportOptions(loader *engine.Loader) engine.ReportOptions {
	s := rollup.DefaultSort()
	if q.Sort != "" {
		s.Key = rollup.SortKey(q.Sort)
	}
	if q.Direction != "" {
		s.Direction = rollup.Direction(q.Direction)
	}
	return engine.ReportOptions{
		OrgID:  q.OrgID,
		PlanID: q.PlanID,
		Filters: rollup.Filters{
			ComponentID:     q.ComponentID,
			StandardID:      q.StandardID,
			ResponsibleID:   q.ResponsibleID,
			CollaboratingID: q.CollaboratingID,
			Search:          q.Search,
			Status:          q.Status,
		},
		Sort:   s,
		Loader: loader,
	}
}

func registerRollup(api huma.API, e engine.Engine, log *zap.Logger) {
	loader := &engine.Loader{Fetch: e.Repo.FetchSnapshot, Log: log}

	huma.Register(api, huma.Operation{
		OperationID: "get-rollup",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}/plans/{plan_id}/rollup",
		Summary:     "Grouped action rollup",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *rollupQuery) (*struct {
		Body RollupResponse `json:"body"`
	}, error) {
		rep, err := e.Report(ctx, input.reportOptions(loader))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RollupResponse `json:"body"`
		}{Body: rollupResponse(rep)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-rollup-stats",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}/plans/{plan_id}/rollup/stats",
		Summary:     "Rollup statistics",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *rollupQuery) (*struct {
		Body RollupStatsResponse `json:"body"`
	}, error) {
		rep, err := e.Report(ctx, input.reportOptions(loader))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RollupStatsResponse `json:"body"`
		}{Body: RollupStatsResponse{
			PlanID:     rep.Plan.ID,
			Global:     rep.Stats,
			Components: rep.Components,
		}}, nil
	})
}

// registerExports serves the spreadsheet and PDF downloads directly on the
// router; they stream binary bodies huma has no business modeling.
func registerExports(router chi.Router, basePath string, e engine.Engine, log *zap.Logger) {
	loader := &engine.Loader{Fetch: e.Repo.FetchSnapshot, Log: log}

	render := func(w http.ResponseWriter, r *http.Request, format string) {
		q := rollupQuery{
			OrgID:           chi.URLParam(r, "org_id"),
			PlanID:          chi.URLParam(r, "plan_id"),
			ComponentID:     r.URL.Query().Get("component_id"),
			StandardID:      r.URL.Query().Get("standard_id"),
			ResponsibleID:   r.URL.Query().Get("responsible_id"),
			CollaboratingID: r.URL.Query().Get("collaborating_id"),
			Search:          r.URL.Query().Get("search"),
			Status:          r.URL.Query().Get("status"),
			Sort:            r.URL.Query().Get("sort"),
			Direction:       r.URL.Query().Get("direction"),
		}
		rep, err := e.Report(r.Context(), q.reportOptions(loader))
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		matrix := export.Build(rep.Tree)
		switch format {
		case "xlsx":
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "eylem-plani-"+rep.Plan.ID+".xlsx"))
			err = export.WriteXLSX(w, matrix)
		case "pdf":
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "eylem-plani-"+rep.Plan.ID+".pdf"))
			err = export.WritePDF(w, matrix, rep.Plan.Name)
		}
		if err != nil && log != nil {
			log.Error("export render failed", zap.String("format", format), zap.Error(err))
		}
	}
	router.Get(basePath+"/orgs/{org_id}/plans/{plan_id}/rollup/export.xlsx", func(w http.ResponseWriter, r *http.Request) {
		render(w, r, "xlsx")
	})
	router.Get(basePath+"/orgs/{org_id}/plans/{plan_id}/rollup/export.pdf", func(w http.ResponseWriter, r *http.Request) {
		render(w, r, "pdf")
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/orgs/{org_id}/events",
		Summary:     "List audit events",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrgID string `path:"org_id"`
		After int64  `query:"after"`
		Limit int    `query:"limit" maximum:"1000"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetOrg(ctx, input.OrgID); err != nil {
			return nil, handleError(err)
		}
		limit := input.Limit
		if limit <= 0 {
			limit = 100
		}
		items, err := e.Repo.ListEvents(ctx, input.OrgID, input.After, limit)
		if err != nil {
			return nil, handleError(err)
		}
		next := input.After
		if len(items) > 0 {
			next = items[len(items)-1].ID
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: EventListResponse{Events: items, NextID: next}}, nil
	})
}
