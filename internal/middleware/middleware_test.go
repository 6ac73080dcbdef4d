package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siva2k2k/ES-TM-sub003/internal/authz"
	"github.com/Siva2k2k/ES-TM-sub003/internal/models"
	appErrors "github.com/Siva2k2k/ES-TM-sub003/pkg/errors"
)

type validatorFunc func(string) (*models.JWTClaims, error)

func (f validatorFunc) ValidateToken(token string) (*models.JWTClaims, error) { return f(token) }

func withClaims(role models.UserRole, userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
		c.Next()
	}
}

func serve(t *testing.T, router *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestJWTMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := validatorFunc(func(token string) (*models.JWTClaims, error) {
		if token != "good" {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
		}
		return &models.JWTClaims{UserID: "u1", Role: models.RoleLead}, nil
	})

	router := gin.New()
	router.GET("/me", JWT(validator), func(c *gin.Context) {
		actor := ActorFromContext(c)
		c.String(http.StatusOK, actor.ID+":"+string(actor.Role))
	})

	rec := serve(t, router, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	_, msg := errorMessage(t, rec)
	assert.Equal(t, authz.ReasonAuthenticationNeeded, msg)

	rec = serve(t, router, http.MethodGet, "/me", http.Header{"Authorization": {"Basic abc"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, router, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer bad"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, router, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer good"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1:lead", rec.Body.String())
}

func TestRequireRolesWithSelf(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		role   models.UserRole
		userID string
		path   string
		want   int
	}{
		{"allowed role", models.RoleManager, "m1", "/users/u9", http.StatusOK},
		{"self", models.RoleEmployee, "u9", "/users/u9", http.StatusOK},
		{"other employee", models.RoleEmployee, "u1", "/users/u9", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/users/:id", withClaims(tc.role, tc.userID), RBAC(string(models.RoleManager), Self), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			rec := serve(t, router, http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRoleGuardsReturnDenialReasons(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		guard  gin.HandlerFunc
		role   models.UserRole
		want   int
		reason string
	}{
		{"manager guard admits manager", RequireManager(), models.RoleManager, http.StatusOK, ""},
		{"manager guard rejects lead", RequireManager(), models.RoleLead, http.StatusForbidden, authz.ReasonManagerRequired},
		{"management guard admits super admin", RequireManagement(), models.RoleSuperAdmin, http.StatusOK, ""},
		{"management guard rejects manager", RequireManagement(), models.RoleManager, http.StatusForbidden, authz.ReasonManagementRequired},
		{"super admin guard rejects management", RequireSuperAdmin(), models.RoleManagement, http.StatusForbidden, authz.ReasonSuperAdminRequired},
		{"super admin guard admits super admin", RequireSuperAdmin(), models.RoleSuperAdmin, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/x", withClaims(tc.role, "actor"), tc.guard, func(c *gin.Context) { c.Status(http.StatusOK) })

			rec := serve(t, router, http.MethodGet, "/x", nil)
			require.Equal(t, tc.want, rec.Code)
			if tc.reason != "" {
				code, msg := errorMessage(t, rec)
				assert.Equal(t, appErrors.ErrAuthorizationDenied.Code, code)
				assert.Equal(t, tc.reason, msg)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users", withClaims(models.RoleEmployee, "e1"), RequireRoles(models.RoleLead, models.RoleManager), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/team", withClaims(models.RoleLead, "l1"), RequireRoles(models.RoleLead, models.RoleManager), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, serve(t, router, http.MethodGet, "/users", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/team", nil).Code)
}

func TestGuardWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/x", RequireManagement(), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(t, router, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMaintenanceMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Maintenance(true, "/api/v1/admin"))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	router.GET("/health", ok)
	router.GET("/api/v1/admin/approvals/drift", ok)
	router.GET("/api/v1/timesheets", ok)

	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/api/v1/admin/approvals/drift", nil).Code)

	rec := serve(t, router, http.MethodGet, "/api/v1/timesheets", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "300", rec.Header().Get("Retry-After"))
	code, _ := errorMessage(t, rec)
	assert.Equal(t, appErrors.ErrMaintenance.Code, code)

	open := gin.New()
	open.Use(Maintenance(false, "/api/v1/admin"))
	open.GET("/api/v1/timesheets", ok)
	assert.Equal(t, http.StatusOK, serve(t, open, http.MethodGet, "/api/v1/timesheets", nil).Code)
}

type observerFake struct {
	paths    []string
	statuses []int
}

func (o *observerFake) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerFake{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/timesheets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(t, router, http.MethodGet, "/timesheets/abc", nil)
	serve(t, router, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, []string{"/timesheets/:id", "unmatched"}, observer.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, observer.statuses)
}

type auditWriterFake struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditWriterFake) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func TestAuditMiddlewareRecordsSuccessOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &auditWriterFake{err: errors.New("ignored")}
	router := gin.New()
	router.Use(withClaims(models.RoleManagement, "mgmt-1"))
	router.GET("/ok", Audit(writer, nil, models.AuditActionApprovalDriftExport, "timesheet_project_approvals"), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", Audit(writer, nil, models.AuditActionApprovalDriftExport, "timesheet_project_approvals"), func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	serve(t, router, http.MethodGet, "/ok?format=pdf", nil)
	serve(t, router, http.MethodGet, "/fail", nil)

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, models.AuditActionApprovalDriftExport, entry.Action)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "mgmt-1", *entry.UserID)
	assert.Contains(t, string(entry.NewValues), "format=pdf")
}
