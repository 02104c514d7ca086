package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"bitbucket.org/storyfount/finance_backend/utils"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusOK) })

	authed := r.Group("", RequireAuth())
	authed.GET("/authed", func(c *gin.Context) { c.Status(http.StatusOK) })

	admin := r.Group("", RequireAuth(), RequireAdmin())
	admin.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func get(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_NoTokenPassesThroughUnauthenticated(t *testing.T) {
	r := newTestEngine()
	if w := get(r, "/open", ""); w.Code != http.StatusOK {
		t.Fatalf("open route should serve without a token, got %d", w.Code)
	}
	if w := get(r, "/authed", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("gated route should 401 without a token, got %d", w.Code)
	}
	if w := get(r, "/admin", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("admin route should 401 without a token, got %d", w.Code)
	}
}

func TestAuthMiddleware_RoleGates(t *testing.T) {
	r := newTestEngine()

	userToken, err := utils.JwtGenerate(7, "user")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if w := get(r, "/authed", "Bearer "+userToken); w.Code != http.StatusOK {
		t.Fatalf("valid token should pass RequireAuth, got %d", w.Code)
	}
	if w := get(r, "/admin", "Bearer "+userToken); w.Code != http.StatusForbidden {
		t.Fatalf("non-admin should get 403 on admin routes, got %d", w.Code)
	}

	adminToken, err := utils.JwtGenerate(1, "admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if w := get(r, "/admin", "Bearer "+adminToken); w.Code != http.StatusOK {
		t.Fatalf("admin token should pass, got %d", w.Code)
	}
}

func TestAuthMiddleware_RejectsMalformedTokens(t *testing.T) {
	r := newTestEngine()
	if w := get(r, "/open", "Bearer not-a-jwt"); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token should 401 even on open routes, got %d", w.Code)
	}
	if w := get(r, "/open", "Token abc"); w.Code != http.StatusUnauthorized {
		t.Fatalf("non-bearer scheme should 401, got %d", w.Code)
	}
}
