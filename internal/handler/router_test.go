package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/matrischol-api/internal/models"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

type tokenTable map[string]*models.JWTClaims

func (t tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := t[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Auth:          NewAuthHandler(nil),
		Users:         NewUserHandler(nil),
		Profiles:      NewProfileHandler(nil, 0),
		Documents:     NewDocumentHandler(&documentServiceStub{}, 0),
		Catalog:       NewCatalogHandler(&catalogServiceStub{}),
		Subjects:      NewSubjectHandler(&subjectServiceStub{}),
		Schedules:     NewScheduleHandler(nil),
		Enrollments:   NewEnrollmentHandler(&enrollmentServiceStub{expired: 2}),
		Approvals:     NewApprovalHandler(nil),
		Notifications: NewNotificationHandler(nil),
		Audit:         NewAuditHandler(nil),
		Geocode:       NewGeocodeHandler(nil),
	}, RouteOptions{Tokens: tokenTable{
		"admin":    {UserID: "a", Role: models.RoleAdmin},
		"staff":    {UserID: "s", Role: models.RoleStaff},
		"guardian": {UserID: "g", Role: models.RoleGuardian},
	}})
	return r
}

func call(r *gin.Engine, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutesEnforceCapabilities(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous me", http.MethodGet, "/api/v1/me", "", http.StatusUnauthorized},
		{"guardian me", http.MethodGet, "/api/v1/me", "guardian", http.StatusOK},
		{"guardian lists users", http.MethodGet, "/api/v1/users", "guardian", http.StatusForbidden},
		{"staff lists audit", http.MethodGet, "/api/v1/audit-logs", "staff", http.StatusForbidden},
		{"guardian runs sweep", http.MethodPost, "/api/v1/enrollment-requests/expire", "guardian", http.StatusForbidden},
		{"admin runs sweep", http.MethodPost, "/api/v1/enrollment-requests/expire", "admin", http.StatusOK},
		{"staff creates institution", http.MethodPost, "/api/v1/institutions", "staff", http.StatusForbidden},
		{"guardian reviews request", http.MethodPost, "/api/v1/enrollment-requests/r1/actions", "guardian", http.StatusForbidden},
		{"guardian searches institutions", http.MethodGet, "/api/v1/institutions", "guardian", http.StatusOK},
		{"staff submits enrollment", http.MethodPost, "/api/v1/enrollment-requests", "staff", http.StatusForbidden},
		{"download without login", http.MethodGet, "/api/v1/documents/download?token=x", "", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, call(r, tc.method, tc.path, tc.token))
		})
	}
}
