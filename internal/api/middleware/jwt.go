package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bynour1/projet-planni/internal/model"
)

// 上下文键，handler 取当前用户信息用。
const (
	CtxUserID  = "userID"
	CtxRole    = "role"
	CtxContact = "contact"
)

// Claims 是会话令牌的载荷：用户 id（Subject）、主联系方式、角色。
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AuthMiddleware 校验 Bearer JWT 并把用户信息写入上下文。
//
// 缺失令牌返回 401，无效或过期返回 403。
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	secret := []byte(jwtSecret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Token manquant"})
			c.Abort()
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "En-tête Authorization invalide"})
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Token invalide ou expiré"})
			c.Abort()
			return
		}

		uid, err := strconv.ParseUint(claims.Subject, 10, 64)
		if err != nil || uid == 0 {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Token invalide ou expiré"})
			c.Abort()
			return
		}

		c.Set(CtxUserID, uint(uid))
		c.Set(CtxRole, strings.TrimSpace(strings.ToLower(claims.Role)))
		c.Set(CtxContact, claims.Email)
		c.Next()
	}
}

// RequireAdmin 管理员角色闸门，必须排在 AuthMiddleware 之后。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if role, _ := c.Get(CtxRole); role != model.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Accès réservé aux administrateurs"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID 从上下文取当前用户 id。
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(CtxUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// Contact 从上下文取当前用户的主联系方式。
func Contact(c *gin.Context) string {
	if v, ok := c.Get(CtxContact); ok {
		if contact, ok := v.(string); ok {
			return contact
		}
	}
	return ""
}
