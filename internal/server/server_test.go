package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"belkon/internal/config"
	"belkon/internal/db"
	"belkon/internal/domain"
	"belkon/internal/engine"
	"belkon/internal/migrate"
	"belkon/internal/repo"
	"belkon/internal/server"
)

const testSecret = "test-secret"

type testServer struct {
	Engine engine.Engine
	HTTP   *httptest.Server
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	handler, err := server.New(server.Config{
		Engine: eng,
		Auth:   server.AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return testServer{Engine: eng, HTTP: ts}
}

func signToken(t *testing.T, subject string, super bool) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if super {
		claims["super_admin"] = true
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// doJSON issues a request with the given token and decodes the JSON response
// into out when non-nil. Returns the status code.
func (ts testServer) doJSON(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, ts.HTTP.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s %s (%d): %v\n%s", method, path, resp.StatusCode, err, data)
		}
	}
	return resp.StatusCode
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	if code := ts.doJSON(t, http.MethodGet, "/v0/orgs", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request: got %d, want 401", code)
	}
	// Health stays open.
	if code := ts.doJSON(t, http.MethodGet, "/v0/health", "", nil, nil); code != http.StatusOK {
		t.Fatalf("health: got %d, want 200", code)
	}
	// Garbage token is rejected with the envelope code.
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if code := ts.doJSON(t, http.MethodGet, "/v0/orgs", "not-a-jwt", nil, &envelope); code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d, want 401", code)
	}
	if envelope.Error.Code != "invalid_credentials" {
		t.Fatalf("bad token code: got %q", envelope.Error.Code)
	}
}

func TestSuperAdminGate(t *testing.T) {
	ts := newTestServer(t)
	editor := signToken(t, "editor", false)

	code := ts.doJSON(t, http.MethodPost, "/v0/orgs", editor, map[string]any{"name": "Belediye"}, nil)
	if code != http.StatusForbidden {
		t.Fatalf("org create as non-super: got %d, want 403", code)
	}
}

func TestOrgAndRollupFlow(t *testing.T) {
	ts := newTestServer(t)
	admin := signToken(t, "admin", true)

	var org struct {
		ID string `json:"id"`
	}
	if code := ts.doJSON(t, http.MethodPost, "/v0/orgs", admin, map[string]any{"name": "Örnek Belediyesi"}, &org); code != http.StatusCreated {
		t.Fatalf("create org: got %d", code)
	}
	if code := ts.doJSON(t, http.MethodPut, "/v0/orgs/"+org.ID+"/licenses", admin,
		map[string]any{"module_id": "ic_kontrol"}, nil); code != http.StatusCreated {
		t.Fatalf("grant license: got %d", code)
	}
	var plan struct {
		ID string `json:"id"`
	}
	if code := ts.doJSON(t, http.MethodPost, "/v0/orgs/"+org.ID+"/plans", admin,
		map[string]any{"name": "2026 Eylem Planı", "year": 2026, "activate": true}, &plan); code != http.StatusCreated {
		t.Fatalf("create plan: got %d", code)
	}
	var cond struct {
		ID string `json:"id"`
	}
	if code := ts.doJSON(t, http.MethodPost, "/v0/conditions", admin,
		map[string]any{"standard_id": "std-kos1", "code": "KOS 1.1", "description": "Etik kurallar duyurulmalıdır."}, &cond); code != http.StatusCreated {
		t.Fatalf("create condition: got %d", code)
	}
	if code := ts.doJSON(t, http.MethodPost, "/v0/orgs/"+org.ID+"/plans/"+plan.ID+"/actions", admin, map[string]any{
		"condition_id": cond.ID,
		"code":         "KOS 1.1.1",
		"title":        "Etik sözleşmeleri imzalatılacaktır",
		"status":       "in_progress",
		"progress":     40,
		"target_date":  "2026-03-14",
	}, nil); code != http.StatusCreated {
		t.Fatalf("create action: got %d", code)
	}

	var rollup struct {
		PlanID     string `json:"plan_id"`
		Components []struct {
			Code      string `json:"code"`
			Standards []struct {
				Conditions []struct {
					Rows []struct {
						Kind      string `json:"kind"`
						DelayDays int    `json:"delay_days"`
					} `json:"rows"`
				} `json:"conditions"`
			} `json:"standards"`
		} `json:"components"`
		Stats struct {
			Total   int `json:"total"`
			Delayed int `json:"delayed"`
		} `json:"stats"`
	}
	if code := ts.doJSON(t, http.MethodGet, "/v0/orgs/"+org.ID+"/plans/"+plan.ID+"/rollup", admin, nil, &rollup); code != http.StatusOK {
		t.Fatalf("rollup: got %d", code)
	}
	if rollup.PlanID != plan.ID {
		t.Fatalf("rollup plan id: got %q", rollup.PlanID)
	}
	if len(rollup.Components) != 1 || rollup.Components[0].Code != "KOS" {
		t.Fatalf("rollup components: %+v", rollup.Components)
	}
	row := rollup.Components[0].Standards[0].Conditions[0].Rows[0]
	if row.Kind != "action" || row.DelayDays != 1 {
		t.Fatalf("rollup row: %+v", row)
	}
	if rollup.Stats.Total != 1 || rollup.Stats.Delayed != 1 {
		t.Fatalf("rollup stats: %+v", rollup.Stats)
	}

	// Exports answer with the right content types.
	req, _ := http.NewRequest(http.MethodGet, ts.HTTP.URL+"/v0/orgs/"+org.ID+"/plans/"+plan.ID+"/rollup/export.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("export content type: %q", ct)
	}
}

func TestErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)
	admin := signToken(t, "admin", true)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if code := ts.doJSON(t, http.MethodGet, "/v0/orgs/no-such-org", admin, nil, &envelope); code != http.StatusNotFound {
		t.Fatalf("missing org: got %d, want 404", code)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("missing org code: got %q", envelope.Error.Code)
	}

	// Unlicensed org trips the entitlement gate with a distinct code.
	var org struct {
		ID string `json:"id"`
	}
	if code := ts.doJSON(t, http.MethodPost, "/v0/orgs", admin, map[string]any{"name": "Lisanssız"}, &org); code != http.StatusCreated {
		t.Fatalf("create org: got %d", code)
	}
	if code := ts.doJSON(t, http.MethodPost, "/v0/orgs/"+org.ID+"/departments", admin,
		map[string]any{"name": "Mali Hizmetler"}, &envelope); code != http.StatusForbidden {
		t.Fatalf("unlicensed department create: got %d, want 403", code)
	}
	if envelope.Error.Code != "not_entitled" {
		t.Fatalf("unlicensed code: got %q", envelope.Error.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	admin := signToken(t, "admin", true)

	var org struct {
		ID string `json:"id"`
	}
	if code := ts.doJSON(t, http.MethodPost, "/v0/orgs", admin, map[string]any{"name": "Belediye"}, &org); code != http.StatusCreated {
		t.Fatalf("create org: got %d", code)
	}
	if code := ts.doJSON(t, http.MethodPut, "/v0/orgs/"+org.ID+"/licenses", admin,
		map[string]any{"module_id": "ic_kontrol"}, nil); code != http.StatusCreated {
		t.Fatalf("grant license: got %d", code)
	}

	var events struct {
		Events []struct {
			Type    string `json:"type"`
			ActorID string `json:"actor_id"`
		} `json:"events"`
		NextID int64 `json:"next_id"`
	}
	if code := ts.doJSON(t, http.MethodGet, "/v0/orgs/"+org.ID+"/events", admin, nil, &events); code != http.StatusOK {
		t.Fatalf("list events: got %d", code)
	}
	if len(events.Events) < 2 {
		t.Fatalf("expected org.create and license.grant events, got %+v", events.Events)
	}
	if events.Events[0].Type != "org.create" || events.Events[0].ActorID != "admin" {
		t.Fatalf("first event: %+v", events.Events[0])
	}
	if events.NextID == 0 {
		t.Fatalf("next_id not advanced")
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	tx, err := ts.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Engine.Repo.EnsureActor(ctx, tx, "svc", "Servis Hesabı", "2026-03-15T00:00:00Z"); err != nil {
		t.Fatalf("ensure actor: %v", err)
	}
	if err := ts.Engine.Repo.InsertAPIKey(ctx, tx, domain.APIKey{
		ID:        "key-1",
		ActorID:   "svc",
		Name:      "ci",
		KeyHash:   repo.HashAPIKey("raw-key"),
		CreatedAt: "2026-03-15T00:00:00Z",
	}); err != nil {
		t.Fatalf("insert api key: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.HTTP.URL+"/v0/orgs", nil)
	req.Header.Set("X-Api-Key", "raw-key")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("api key auth: got %d, want 200", resp.StatusCode)
	}
}
