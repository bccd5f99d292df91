package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/audit"
	audithttp "github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/audit/http"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/auth"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/observability"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/rbac"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/jobs"
)

type emptyTimeline struct{}

func (emptyTimeline) Timeline(context.Context, audit.TimelineFilters) (audit.Result, error) {
	return audit.Result{Rows: []audit.TimelineRow{}}, nil
}

func (emptyTimeline) Export(context.Context, audit.TimelineFilters) ([]audit.TimelineRow, error) {
	return nil, nil
}

func testRouter(t *testing.T) (http.Handler, *auth.TokenService) {
	t.Helper()
	cfg := &Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second}
	tokens := auth.NewTokenService("test-secret-test-secret-test-secret", "clinic-test", time.Hour)
	router := NewRouter(RouterParams{
		Config:         cfg,
		Tokens:         tokens,
		AuditHandler:   audithttp.NewHandler(nil, emptyTimeline{}),
		JobHandler:     jobs.NewHandler(nil, nil),
		RBACMiddleware: rbac.Middleware{},
		Metrics:        observability.NewMetrics(),
	})
	return router, tokens
}

func bearer(t *testing.T, tokens *auth.TokenService, actor identity.Actor) string {
	t.Helper()
	raw, _, err := tokens.Issue(actor)
	require.NoError(t, err)
	return "Bearer " + raw
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	router, _ := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	router, tokens := testRouter(t)

	cases := []struct {
		name   string
		auth   string
		status int
	}{
		{name: "anonymous", status: http.StatusUnauthorized},
		{name: "invalid token", auth: "Bearer nope", status: http.StatusUnauthorized},
		{name: "staff", auth: bearer(t, tokens, identity.Actor{ID: 4, Role: identity.RoleStaff, BranchID: identity.BranchPtr(1)}), status: http.StatusForbidden},
		{name: "admin", auth: bearer(t, tokens, identity.Actor{ID: 1, Role: identity.RoleAdmin}), status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/audit/", nil)
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestJobsHealthMountedForAdmins(t *testing.T) {
	router, tokens := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil)
	req.Header.Set("Authorization", bearer(t, tokens, identity.Actor{ID: 1, Role: identity.RoleAdmin}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body jobs.QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, jobs.QueueDefault, body.Queue)
}

func TestUnknownRouteIsProblemJSON(t *testing.T) {
	router, _ := testRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	router := NewRouter(RouterParams{Config: &Config{RateLimitPerMinute: 2}})
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.9:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{JWTSecret: "short", RateLimitPerMinute: 60, AppEnv: "development"}
	require.NoError(t, cfg.Validate())

	cfg.AppEnv = "production"
	require.Error(t, cfg.Validate())

	cfg = Config{RateLimitPerMinute: 60}
	require.Error(t, cfg.Validate())

	cfg = Config{JWTSecret: "secret", RateLimitPerMinute: 0}
	require.Error(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("RELAY_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("NOTIFY_TIMEOUT", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.JWTSecret)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RelayAllowedOrigins)
	require.Equal(t, 5*time.Second, cfg.NotifyTimeout)
	require.Equal(t, ":6001", cfg.RelayAddr)
	require.Equal(t, 5, cfg.LowStockDefaultThreshold)
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", AppEnv: "test"}, &buf).Info("hello")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "test", line["env"])
}

func TestInTestModeFollowsEnv(t *testing.T) {
	t.Setenv("CLINIC_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("CLINIC_TEST_MODE", "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
