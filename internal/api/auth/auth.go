// Package auth 实现认证网关：登录签发会话令牌、改密、忘记/重置密码。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bynour1/projet-planni/internal/api/middleware"
	"github.com/bynour1/projet-planni/internal/model"
	"github.com/bynour1/projet-planni/internal/notify"
	"github.com/bynour1/projet-planni/internal/pkg/metrics"
	"github.com/bynour1/projet-planni/internal/store"
)

// tokenTTL 会话令牌有效期。无服务端吊销，只靠过期失效。
const tokenTTL = 24 * time.Hour

// UserStore 是认证网关需要的用户存储子集。
type UserStore interface {
	FindByContact(ctx context.Context, contact string) (*model.User, error)
	UpdatePassword(ctx context.Context, contact string, hashed string) error
}

// CodeStore 是密码重置复用的一次性验证码存储。
type CodeStore interface {
	Save(ctx context.Context, contact string, code string) error
	Consume(ctx context.Context, contact string, code string) error
}

// Limiter 发码限流。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Handler 提供登录与密码相关接口。
type Handler struct {
	users      UserStore
	codes      CodeStore
	dispatcher notify.Dispatcher
	limiter    Limiter
	jwtSecret  []byte
	logger     *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(users UserStore, codes CodeStore, dispatcher notify.Dispatcher, limiter Limiter, jwtSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		users:      users,
		codes:      codes,
		dispatcher: dispatcher,
		limiter:    limiter,
		jwtSecret:  []byte(jwtSecret),
		logger:     logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type forgotPasswordRequest struct {
	Contact string `json:"contact" binding:"required"`
}

type resetPasswordRequest struct {
	Contact     string `json:"contact" binding:"required"`
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// Login 校验联系方式+密码并签发 JWT。
//
// 不存在、未确认、密码为空或不匹配一律返回同一个 401，不泄露账号状态。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	raw := req.Contact
	if raw == "" {
		raw = req.Email
	}
	contact, err := model.ParseContact(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide"})
		return
	}

	user, err := h.users.FindByContact(c.Request.Context(), contact.Value)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			h.logger.Error("login lookup failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
			return
		}
		h.rejectLogin(c)
		return
	}
	if !user.IsConfirmed || user.Password == "" {
		h.rejectLogin(c)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		h.rejectLogin(c)
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		h.logger.Error("sign token failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	h.logger.Info("user logged in", slog.String("contact", contact.Value), slog.String("role", user.Role))
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
}

// ChangePassword 修改当前用户密码：旧密码必须匹配，新旧不能相同。
// 成功后 mustChangePassword 清零。
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	if req.NewPassword == req.OldPassword {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Le nouveau mot de passe doit être différent de l'ancien"})
		return
	}
	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Le mot de passe doit contenir au moins 6 caractères"})
		return
	}

	contact := middleware.Contact(c)
	user, err := h.users.FindByContact(c.Request.Context(), contact)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Utilisateur introuvable"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Ancien mot de passe incorrect"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), contact, string(hashed)); err != nil {
		h.logger.Error("update password failed", slog.String("contact", contact), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	h.logger.Info("password changed", slog.String("contact", contact))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Mot de passe changé avec succès"})
}

// ForgotPassword 给已确认用户发送密码重置码，复用邀请流程的验证码存储。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact manquant"})
		return
	}
	contact, err := model.ParseContact(req.Contact)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide"})
		return
	}

	user, err := h.users.FindByContact(c.Request.Context(), contact.Value)
	if err != nil || !user.IsConfirmed {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact inconnu. Contactez l'administrateur."})
		return
	}

	if allowed, err := h.limiter.Allow(c.Request.Context(), contact.Value); err == nil && !allowed {
		metrics.SendRateLimitedTotal.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Trop de demandes. Réessayez plus tard."})
		return
	}

	code, err := notify.GenerateCode(6)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	if err := h.codes.Save(c.Request.Context(), contact.Value, code); err != nil {
		h.logger.Error("save reset code failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	meta := notify.Meta{Nom: user.Nom, Prenom: user.Prenom, Role: user.Role, PasswordReset: true}
	method, err := h.dispatcher.Send(c.Request.Context(), contact, code, meta)
	if err != nil {
		// 码已持久化，投递失败降级为 dev-mode 响应。
		h.logger.Warn("reset code delivery failed (dev-mode)", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		metrics.CodeDevModeTotal.Inc()
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Code (dev) généré", "contact": contact.Value, "code": code})
		return
	}

	metrics.CodeSentTotal.WithLabelValues(method).Inc()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Code envoyé", "contact": contact.Value})
}

// ResetPassword 核验重置码并写入新密码，验证码一次性消费。
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	contact, err := model.ParseContact(req.Contact)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide"})
		return
	}
	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Le mot de passe doit contenir au moins 6 caractères"})
		return
	}

	if err := h.codes.Consume(c.Request.Context(), contact.Value, req.Code); err != nil {
		// 只有明确的未找到/不匹配算用户错误，存储故障是 500。
		if errors.Is(err, store.ErrCodeNotFound) || errors.Is(err, store.ErrCodeMismatch) {
			metrics.CodeRejectedTotal.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Code invalide"})
			return
		}
		h.logger.Error("consume code failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	metrics.CodeVerifiedTotal.Inc()

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), contact.Value, string(hashed)); err != nil {
		h.logger.Error("reset password failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	h.logger.Info("password reset", slog.String("contact", contact.Value))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Mot de passe réinitialisé avec succès"})
}

func (h *Handler) rejectLogin(c *gin.Context) {
	metrics.LoginFailedTotal.Inc()
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Email ou mot de passe incorrect"})
}

func (h *Handler) issueToken(user *model.User) (string, error) {
	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: user.PrimaryContact(),
		Role:  user.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}
