package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-portal/portal-core/config"
	"github.com/campus-portal/portal-core/internal/application/command"
	"github.com/campus-portal/portal-core/internal/application/query"
	"github.com/campus-portal/portal-core/internal/domain/account"
	"github.com/campus-portal/portal-core/internal/domain/company"
	"github.com/campus-portal/portal-core/internal/domain/student"
	"github.com/campus-portal/portal-core/internal/infrastructure/identity"
	"github.com/campus-portal/portal-core/internal/infrastructure/persistence/memory"
	"github.com/campus-portal/portal-core/pkg/logger"
	"github.com/campus-portal/portal-core/pkg/metrics"
)

type fixture struct {
	server   *Server
	students *memory.StudentRepository
	accounts *memory.AccountRepository
	claims   *memory.ClaimsStore
	provider *identity.Provider
	features *config.FeatureFlags
	metrics  *metrics.Manager
	health   *HealthChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		students: memory.NewStudentRepository(),
		accounts: memory.NewAccountRepository(),
		claims:   memory.NewClaimsStore(),
		features: config.LoadFeatureFlags(),
		metrics:  metrics.NewManager(),
		health:   NewHealthChecker("test"),
	}
	companies := memory.NewCompanyRepository()
	f.provider = identity.NewProvider(identity.Config{Secret: "test-secret-0123456789", Issuer: "portal-test"}, f.accounts, f.claims)

	require.NoError(t, f.students.Create(ctx, &student.Record{
		ID: "s1", Name: "Asha", RollNumber: "21CS042", Branch: "CSE",
		Skills: []string{"Go", "SQL"},
	}))
	require.NoError(t, companies.Upsert(ctx, &company.Profile{Name: "Acme", RequiredSkills: []string{"Go", "Rust"}}))

	hash, err := identity.HashPassword("correct horse")
	require.NoError(t, err)
	require.NoError(t, f.accounts.Create(ctx, &account.Account{ID: "s1", Email: "asha@campus.edu", PasswordHash: hash, Role: account.RoleStudent, Branch: "CSE"}))
	require.NoError(t, f.accounts.Create(ctx, &account.Account{ID: "u2", Email: "u2@campus.edu", Role: account.RoleStudent}))

	log := logger.Nop()
	f.server = NewServer(Config{MaxBodyBytes: 1 << 16, AllowedOrigins: []string{"https://portal.campus.edu"}, MetricsPath: "/metrics", Version: "test"}, Dependencies{
		PlacementReadiness: command.NewComputePlacementReadinessHandler(f.students, log, f.metrics),
		SetUserRole:        command.NewSetUserRoleHandler(f.accounts, f.claims, nil, log, f.metrics, command.SetUserRoleConfig{}),
		AnalyzeSkillGap:    query.NewAnalyzeSkillGapHandler(f.students, companies),
		GenerateDigitalID:  query.NewGenerateDigitalIDHandler(f.students, ""),
		VerifyDigitalID:    query.NewVerifyDigitalIDHandler(f.students, ""),
		Auth:               f.provider,
		SignIn:             f.provider,
		Features:           f.features,
		Health:             f.health,
		Metrics:            f.metrics,
		Logger:             log,
	})
	return f
}

func (f *fixture) token(t *testing.T, uid string, claims account.ClaimSet) string {
	t.Helper()
	tok, err := f.provider.IssueToken(uid, claims)
	require.NoError(t, err)
	return tok.Token
}

func (f *fixture) call(t *testing.T, name, token, body string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/callable/"+name, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func errorStatus(t *testing.T, out map[string]json.RawMessage) string {
	t.Helper()
	var e errorBody
	require.Contains(t, out, "error")
	require.NoError(t, json.Unmarshal(out["error"], &e))
	return e.Status
}

// ─────────────────────────────────────────────────────────────────────────────
// Authentication
// ─────────────────────────────────────────────────────────────────────────────

func TestCallable_RejectsMissingOrBadTokenBeforeStoreAccess(t *testing.T) {
	f := newFixture(t)
	studentOps, accountOps, claimOps := f.students.Ops(), f.accounts.Ops(), f.claims.Ops()

	for _, name := range []string{CallableGetPlacementReadiness, CallableAnalyzeSkillGap, CallableSetUserRole, CallableGenerateDigitalID, CallableVerifyDigitalID} {
		for _, tok := range []string{"", "not-a-jwt"} {
			rec, out := f.call(t, name, tok, `{"data":{}}`)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
			assert.Equal(t, "unauthenticated", errorStatus(t, out), name)
		}
	}

	assert.Equal(t, studentOps, f.students.Ops())
	assert.Equal(t, accountOps, f.accounts.Ops())
	assert.Equal(t, claimOps, f.claims.Ops())
}

func TestAuthToken(t *testing.T) {
	f := newFixture(t)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(body))
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"email":"asha@campus.edu","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok identity.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)

	res, out := f.call(t, CallableGenerateDigitalID, tok.Token, `{"data":{}}`)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, out, "result")

	assert.Equal(t, http.StatusUnauthorized, post(`{"email":"asha@campus.edu","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(`{"email":"nobody@campus.edu","password":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"email":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).Code)
}

// ─────────────────────────────────────────────────────────────────────────────
// Callables
// ─────────────────────────────────────────────────────────────────────────────

func TestCallable_GenerateDigitalID(t *testing.T) {
	f := newFixture(t)
	rec, out := f.call(t, CallableGenerateDigitalID, f.token(t, "s1", account.ClaimSet{Student: true}), `{"data":null}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var id student.DigitalID
	require.NoError(t, json.Unmarshal(out["result"], &id))
	assert.Equal(t, student.EncodeIDHash("s1", "21CS042"), id.IDHash)
	assert.Equal(t, "2028-06-30", id.ValidUntil)
	assert.Nil(t, id.PhotoURL)
	assert.Contains(t, string(out["result"]), `"photoUrl":null`)
}

func TestCallable_AnalyzeSkillGap(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "s1", account.ClaimSet{Student: true})

	rec, out := f.call(t, CallableAnalyzeSkillGap, tok, `{"data":{"companyName":"Acme"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var gap company.SkillGap
	require.NoError(t, json.Unmarshal(out["result"], &gap))
	assert.Equal(t, 50, gap.MatchPercentage)
	assert.Equal(t, []string{"Go"}, gap.CommonSkills)
	assert.Equal(t, []string{"Rust"}, gap.MissingSkills)

	rec, out = f.call(t, CallableAnalyzeSkillGap, tok, `{"data":{"companyName":"Nope"}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not-found", errorStatus(t, out))

	rec, out = f.call(t, CallableAnalyzeSkillGap, tok, `{"data":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid-argument", errorStatus(t, out))
}

func TestCallable_PlacementReadiness(t *testing.T) {
	f := newFixture(t)

	rec, out := f.call(t, CallableGetPlacementReadiness, f.token(t, "s1", account.ClaimSet{Student: true}), `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var r student.Readiness
	require.NoError(t, json.Unmarshal(out["result"], &r))
	assert.Equal(t, 6, r.Score)
	assert.Equal(t, student.ReadinessNeedsImprovement, r.Level)

	rec, out = f.call(t, CallableGetPlacementReadiness, f.token(t, "ghost", account.ClaimSet{}), `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not-found", errorStatus(t, out))
}

func TestCallable_SetUserRole(t *testing.T) {
	f := newFixture(t)
	body := `{"data":{"targetUid":"u2","role":"Faculty","branch":"ECE"}}`

	rec, out := f.call(t, CallableSetUserRole, f.token(t, "s1", account.ClaimSet{Student: true}), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission-denied", errorStatus(t, out))

	admin := f.token(t, "a1", account.ClaimSet{Admin: true})
	rec, out = f.call(t, CallableSetUserRole, admin, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, string(out["result"]))

	claims, ok, err := f.claims.GetClaims(context.Background(), "u2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, account.ClaimSet{Faculty: true, Branch: "ECE"}, claims)

	rec, out = f.call(t, CallableSetUserRole, admin, `{"data":{"targetUid":"u2","role":"Dean"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid-argument", errorStatus(t, out))
}

func TestCallable_VerifyDigitalID(t *testing.T) {
	f := newFixture(t)
	faculty := f.token(t, "f1", account.ClaimSet{Faculty: true})
	body := `{"data":{"idHash":"` + student.EncodeIDHash("s1", "21CS042") + `"}}`

	rec, out := f.call(t, CallableVerifyDigitalID, faculty, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(out["result"]), `"valid":true`)

	rec, out = f.call(t, CallableVerifyDigitalID, f.token(t, "s1", account.ClaimSet{Student: true}), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission-denied", errorStatus(t, out))

	require.NoError(t, f.features.DisableFeature(config.FeatureVerifyDigitalID))
	rec, _ = f.call(t, CallableVerifyDigitalID, faculty, body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallable_BadRequests(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "s1", account.ClaimSet{Student: true})

	rec, out := f.call(t, "deleteEverything", tok, `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not-found", errorStatus(t, out))

	rec, out = f.call(t, CallableAnalyzeSkillGap, tok, `{"data":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid-argument", errorStatus(t, out))

	rec, out = f.call(t, CallableAnalyzeSkillGap, tok, `{"data":{"companyName":7}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid-argument", errorStatus(t, out))
}

// ─────────────────────────────────────────────────────────────────────────────
// Operational endpoints
// ─────────────────────────────────────────────────────────────────────────────

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)
	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/health").Code)

	f.health.AddReport("postgres", func(context.Context) (string, error) {
		return "ping 1ms, 3/10 conns (1 acquired, 2 idle)", nil
	})
	assert.Equal(t, http.StatusOK, get("/ready").Code)

	f.health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec := get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Ready)
	assert.True(t, status.Checks["postgres"].Healthy)
	assert.Equal(t, "ping 1ms, 3/10 conns (1 acquired, 2 idle)", status.Checks["postgres"].Message)
	assert.False(t, status.Checks["redis"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, "failing: redis", status.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.call(t, CallableGenerateDigitalID, "", `{}`)

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `portal_callable_requests_total{callable="generateDigitalID",code="unauthenticated"} 1`)
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/callable/analyzeSkillGap", nil)
	req.Header.Set("Origin", "https://portal.campus.edu")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://portal.campus.edu", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	l := newClientLimiter(1, 2)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		"unauthenticated":   http.StatusUnauthorized,
		"permission-denied": http.StatusForbidden,
		"invalid-argument":  http.StatusBadRequest,
		"not-found":         http.StatusNotFound,
		"already-exists":    http.StatusConflict,
		"internal":          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), code)
	}
}
