package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bynour1/projet-planni/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, role string, ttl time.Duration) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		Email: "jean@hopital.fr",
		Role:  role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	authed := r.Group("/", AuthMiddleware(testSecret))
	authed.GET("/planning", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "contact": Contact(c), "userID": UserID(c)})
	})
	admin := authed.Group("/", RequireAdmin())
	admin.POST("/invite-user", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func doRequest(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	r := newTestRouter()
	if w := doRequest(r, http.MethodGet, "/planning", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	r := newTestRouter()
	if w := doRequest(r, http.MethodGet, "/planning", "pas-un-jwt"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	r := newTestRouter()
	token := signToken(t, model.RoleMedecin, -time.Minute)
	if w := doRequest(r, http.MethodGet, "/planning", token); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for expired token, got %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r := newTestRouter()
	token := signToken(t, model.RoleMedecin, time.Hour)
	w := doRequest(r, http.MethodGet, "/planning", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequireAdmin_NonAdminBlocked(t *testing.T) {
	r := newTestRouter()
	token := signToken(t, model.RoleMedecin, time.Hour)

	// 读公共数据可以，写管理端点不行
	if w := doRequest(r, http.MethodGet, "/planning", token); w.Code != http.StatusOK {
		t.Fatalf("expected read to pass, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/invite-user", token); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
}

func TestRequireAdmin_AdminAllowed(t *testing.T) {
	r := newTestRouter()
	token := signToken(t, model.RoleAdmin, time.Hour)
	if w := doRequest(r, http.MethodPost, "/invite-user", token); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", w.Code)
	}
}
