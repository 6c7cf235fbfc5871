package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matrischol-api/internal/models"
	"github.com/noah-isme/matrischol-api/internal/service"
	appErrors "github.com/noah-isme/matrischol-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingDispatcher struct {
	effects []service.Effect
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, effects ...service.Effect) {
	r.effects = append(r.effects, effects...)
}

func newRouter(validator TokenValidator, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(validator)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user": actor.UserID, "role": actor.Role})
	})
	router.GET("/private", handlers...)
	return router
}

func serve(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private?page=2", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	router := newRouter(stubValidator{})
	w := serve(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	router := newRouter(stubValidator{})
	w := serve(router, "bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTResolvesActor(t *testing.T) {
	router := newRouter(stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleGuardian}})
	w := serve(router, "good")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["user"])
	assert.Equal(t, "GUARDIAN", body["role"])
}

func TestRequireCapability(t *testing.T) {
	guardian := stubValidator{claims: &models.JWTClaims{UserID: "g", Role: models.RoleGuardian}}
	admin := stubValidator{claims: &models.JWTClaims{UserID: "a", Role: models.RoleAdmin}}

	w := serve(newRouter(guardian, RequireCapability(models.CapViewAuditLog)), "good")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newRouter(admin, RequireCapability(models.CapViewAuditLog)), "good")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(newRouter(guardian, RequireCapability(models.CapSubmitEnrollmentRequests, models.CapManageOwnStudents)), "good")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles(t *testing.T) {
	staff := stubValidator{claims: &models.JWTClaims{UserID: "s", Role: models.RoleStaff}}
	w := serve(newRouter(staff, RequireRoles(models.RoleAdmin)), "good")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(newRouter(staff, RequireRoles(models.RoleAdmin, models.RoleStaff)), "good")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditDispatchesOnSuccessOnly(t *testing.T) {
	admin := stubValidator{claims: &models.JWTClaims{UserID: "a", Role: models.RoleAdmin}}
	dispatcher := &recordingDispatcher{}

	w := serve(newRouter(admin, Audit(dispatcher, models.AuditActionExport, "AdminActionLog")), "good")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, dispatcher.effects, 1)

	entry := dispatcher.effects[0].Audit
	require.NotNil(t, entry)
	assert.Equal(t, models.AuditActionExport, entry.Action)
	assert.Equal(t, "GET /private", entry.ObjectRepr)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "a", *entry.UserID)
	assert.Contains(t, string(entry.Details), `"query":"page=2"`)

	dispatcher.effects = nil
	guardian := stubValidator{claims: &models.JWTClaims{UserID: "g", Role: models.RoleGuardian}}
	w = serve(newRouter(guardian, RequireCapability(models.CapViewAuditLog), Audit(dispatcher, models.AuditActionExport, "AdminActionLog")), "good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, dispatcher.effects)
}

func TestWithResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestExtractMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	SetCacheHit(c, false)
	meta := ExtractMeta(c)
	assert.Equal(t, false, meta["cache_hit"])
	assert.NotContains(t, meta, "processing_time_ms")
}
