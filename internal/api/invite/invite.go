// Package invite 实现邀请/确认状态机：
// 邀请 → 发送一次性验证码 → 核验 → 临时密码 → 激活。
package invite

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/bynour1/projet-planni/internal/model"
	"github.com/bynour1/projet-planni/internal/notify"
	"github.com/bynour1/projet-planni/internal/pkg/metrics"
	"github.com/bynour1/projet-planni/internal/store"
)

// UserStore 是邀请流程需要的用户存储子集。
type UserStore interface {
	FindByContact(ctx context.Context, contact string) (*model.User, error)
	AddUser(ctx context.Context, user *model.User) (uint, error)
	CreateOrUpdate(ctx context.Context, user *model.User) error
	SetProvisionalPassword(ctx context.Context, contact string, hashed string) error
	ConfirmUser(ctx context.Context, contact string) error
	List(ctx context.Context) ([]model.User, error)
}

// CodeStore 一次性验证码存储。Save 覆盖旧码，Consume 成功即删除。
type CodeStore interface {
	Save(ctx context.Context, contact string, code string) error
	Consume(ctx context.Context, contact string, code string) error
}

// Limiter 按联系方式限制发码频率。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MXResolver 校验邮箱域名是否有 MX 记录。
type MXResolver interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

// Publisher 把状态变更广播给在线客户端。
type Publisher interface {
	Publish(event string, payload interface{})
}

// NetResolver 基于 net.DefaultResolver 的 MXResolver。
type NetResolver struct{}

func (NetResolver) HasMX(ctx context.Context, domain string) (bool, error) {
	records, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, nil
		}
		return false, err
	}
	return len(records) > 0, nil
}

// Handler 提供邀请、建号、验证码核验与激活接口。
type Handler struct {
	users      UserStore
	codes      CodeStore
	dispatcher notify.Dispatcher
	limiter    Limiter
	mx         MXResolver
	publisher  Publisher
	logger     *slog.Logger
}

// NewHandler 创建 Invite Handler。
func NewHandler(users UserStore, codes CodeStore, dispatcher notify.Dispatcher, limiter Limiter, mx MXResolver, publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		users:      users,
		codes:      codes,
		dispatcher: dispatcher,
		limiter:    limiter,
		mx:         mx,
		publisher:  publisher,
		logger:     logger,
	}
}

type inviteRequest struct {
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Nom        string `json:"nom"`
	Prenom     string `json:"prenom"`
	Role       string `json:"role"`
	SendCodeBy string `json:"sendCodeBy"` // "email" 或 "phone"，缺省优先邮箱
}

type createDirectRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Role     string `json:"role"`
}

type verifyCodeRequest struct {
	Contact             string `json:"contact"`
	Email               string `json:"email"`
	Code                string `json:"code" binding:"required"`
	ProvisionalPassword string `json:"provisionalPassword"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Password string `json:"password" binding:"required"`
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Role     string `json:"role"`
}

type sendCodeRequest struct {
	Contact string `json:"contact"`
	Email   string `json:"email"`
}

type activateRequest struct {
	Email string `json:"email" binding:"required"`
}

// Invite 管理员邀请新用户：落库未确认记录，生成并投递一次性验证码。
//
// 已确认的联系方式拒绝；未确认记录视为重发，不新建行。
// 验证码持久化成功后投递失败不回滚，降级为 dev-mode 响应携带明文码。
func (h *Handler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	if req.Email == "" && req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email ou téléphone requis"})
		return
	}

	contacts, err := parseContacts(req.Email, req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide"})
		return
	}

	role := req.Role
	if role == "" {
		role = model.RoleMedecin
	}
	if !model.ValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Rôle invalide"})
		return
	}

	// 校验每个给定联系方式：已确认 → 冲突；未确认 → 幂等重发。
	ctx := c.Request.Context()
	var existing *model.User
	for _, ct := range contacts {
		user, err := h.users.FindByContact(ctx, ct.Value)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				continue
			}
			h.logger.Error("invite lookup failed", slog.String("contact", ct.Value), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
			return
		}
		if user.IsConfirmed {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Utilisateur existe déjà"})
			return
		}
		existing = user
	}

	var userID uint
	if existing != nil {
		userID = existing.ID
	} else {
		user := &model.User{Nom: req.Nom, Prenom: req.Prenom, Role: role}
		for _, ct := range contacts {
			if ct.IsEmail() {
				v := ct.Value
				user.Email = &v
			} else {
				v := ct.Value
				user.Phone = &v
			}
		}
		userID, err = h.users.AddUser(ctx, user)
		if err != nil {
			if errors.Is(err, store.ErrDuplicateContact) {
				// 并发邀请输家，唯一索引兜底。
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Utilisateur existe déjà"})
				return
			}
			h.logger.Error("invite insert failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
			return
		}
		metrics.InviteCreatedTotal.Inc()
	}

	delivery := pickDelivery(contacts, req.SendCodeBy)
	h.sendCode(c, delivery, notify.Meta{Nom: req.Nom, Prenom: req.Prenom, Role: role}, gin.H{"userId": userID})
}

// CreateUserDirect 管理员直接建号：生成临时密码，用户首登必须改密。
// 临时密码明文只在这个响应里出现一次。
func (h *Handler) CreateUserDirect(c *gin.Context) {
	var req createDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Données manquantes"})
		return
	}
	if req.Email == "" && req.Phone == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email ou téléphone requis"})
		return
	}
	contacts, err := parseContacts(req.Email, req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact invalide"})
		return
	}
	role := req.Role
	if role == "" {
		role = model.RoleMedecin
	}
	if !model.ValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Rôle invalide"})
		return
	}

	ctx := c.Request.Context()
	for _, ct := range contacts {
		user, err := h.users.FindByContact(ctx, ct.Value)
		if err == nil && user.IsConfirmed {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Utilisateur existe déjà"})
			return
		}
		if err != nil && !errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	user := &model.User{Nom: req.Nom, Prenom: req.Prenom, Role: role, Password: string(hashed)}
	for _, ct := range contacts {
		v := ct.Value
		if ct.IsEmail() {
			user.Email = &v
		} else {
			user.Phone = &v
		}
	}
	if err := h.users.CreateOrUpdate(ctx, user); err != nil {
		h.logger.Error("create user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	primary := contacts[0].Value
	if err := h.users.SetProvisionalPassword(ctx, primary, string(hashed)); err != nil {
		h.logger.Error("set provisional password failed", slog.String("contact", primary), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	h.publisher.Publish("users:update", gin.H{"contact": primary})
	h.logger.Info("user created directly", slog.String("contact", primary), slog.String("role", role))
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"message":             "Utilisateur créé avec mot de passe provisoire",
		"contact":             primary,
		"provisionalPassword": req.Password,
	})
}

// VerifyCode 核验一次性验证码并确认用户。
//
// 携带 provisionalPassword 时同时写入临时密码（mustChangePassword 置位），
// 用户凭它即可登录。验证码核验成功即删除，二次提交同码失败。
func (h *Handler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
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

	ctx := c.Request.Context()
	if err := h.codes.Consume(ctx, contact.Value, req.Code); err != nil {
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

	if req.ProvisionalPassword != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.ProvisionalPassword), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
			return
		}
		if err := h.users.SetProvisionalPassword(ctx, contact.Value, string(hashed)); err != nil {
			h.logger.Error("set provisional password failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
			return
		}
	}
	if err := h.users.ConfirmUser(ctx, contact.Value); err != nil {
		h.logger.Error("confirm user failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	h.publisher.Publish("users:update", gin.H{"contact": contact.Value})
	h.logger.Info("contact confirmed", slog.String("contact", contact.Value))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Contact confirmé avec succès !"})
}

// CreateUser 自助注册通道：只对已确认的既有记录开放，写入自选密码。
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
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

	ctx := c.Request.Context()
	existing, err := h.users.FindByContact(ctx, contact.Value)
	if err != nil || !existing.IsConfirmed {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Compte non confirmé. Contactez l'administrateur."})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	role := req.Role
	if role == "" {
		role = existing.Role
	}
	if !model.ValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Rôle invalide"})
		return
	}
	nom, prenom := req.Nom, req.Prenom
	if nom == "" {
		nom = existing.Nom
	}
	if prenom == "" {
		prenom = existing.Prenom
	}

	user := &model.User{Email: existing.Email, Phone: existing.Phone, Nom: nom, Prenom: prenom, Role: role, Password: string(hashed)}
	if err := h.users.CreateOrUpdate(ctx, user); err != nil {
		h.logger.Error("create user failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	h.publisher.Publish("users:update", gin.H{"contact": contact.Value})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Utilisateur créé/mis à jour"})
}

// SendCode 给既有记录重发验证码。邮箱先查 MX 记录拦截死域名。
func (h *Handler) SendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact manquant"})
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

	ctx := c.Request.Context()
	user, err := h.users.FindByContact(ctx, contact.Value)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Utilisateur introuvable"})
		return
	}

	if contact.IsEmail() {
		ok, err := h.mx.HasMX(ctx, contact.Domain())
		if err != nil {
			// DNS 故障不拦投递，只记日志。
			h.logger.Warn("mx lookup failed", slog.String("domain", contact.Domain()), slog.String("error", err.Error()))
		} else if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Domaine de messagerie introuvable"})
			return
		}
	}

	h.sendCode(c, contact, notify.Meta{Nom: user.Nom, Prenom: user.Prenom, Role: user.Role}, gin.H{})
}

// CheckContact 前端预检：格式、是否存在、是否已确认、邮箱域名 MX。
func (h *Handler) CheckContact(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Contact manquant"})
		return
	}
	raw := req.Contact
	if raw == "" {
		raw = req.Email
	}

	contact, err := model.ParseContact(raw)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "formatValid": false, "exists": false, "isConfirmed": false, "mxOk": false})
		return
	}

	ctx := c.Request.Context()
	exists, confirmed := false, false
	if user, err := h.users.FindByContact(ctx, contact.Value); err == nil {
		exists = true
		confirmed = user.IsConfirmed
	}

	mxOk := true
	if contact.IsEmail() {
		if ok, err := h.mx.HasMX(ctx, contact.Domain()); err == nil {
			mxOk = ok
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "formatValid": true, "exists": exists, "isConfirmed": confirmed, "mxOk": mxOk})
}

// Activate 管理员手动确认用户（验证码流程的后门），返回最新用户列表。
func (h *Handler) Activate(c *gin.Context) {
	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Email manquant"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.users.FindByContact(ctx, req.Email); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Utilisateur introuvable"})
		return
	}
	if err := h.users.ConfirmUser(ctx, req.Email); err != nil {
		h.logger.Error("activate failed", slog.String("contact", req.Email), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	users, err := h.users.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	h.publisher.Publish("users:update", gin.H{"contact": req.Email})
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// sendCode 限流 → 生成 → 持久化 → 投递，投递失败降级 dev-mode。
// extra 合并进成功响应（如 userId）。
func (h *Handler) sendCode(c *gin.Context, contact model.Contact, meta notify.Meta, extra gin.H) {
	ctx := c.Request.Context()

	if allowed, err := h.limiter.Allow(ctx, contact.Value); err == nil && !allowed {
		metrics.SendRateLimitedTotal.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Trop de demandes. Réessayez plus tard."})
		return
	}

	code, err := notify.GenerateCode(6)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	if err := h.codes.Save(ctx, contact.Value, code); err != nil {
		h.logger.Error("save code failed", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}

	resp := gin.H{"success": true, "contact": contact.Value}
	for k, v := range extra {
		resp[k] = v
	}

	method, err := h.dispatcher.Send(ctx, contact, code, meta)
	if err != nil {
		h.logger.Warn("code delivery failed (dev-mode)", slog.String("contact", contact.Value), slog.String("error", err.Error()))
		metrics.CodeDevModeTotal.Inc()
		resp["message"] = "Code (dev) généré"
		resp["code"] = code
		c.JSON(http.StatusOK, resp)
		return
	}

	metrics.CodeSentTotal.WithLabelValues(method).Inc()
	resp["message"] = "Code envoyé"
	c.JSON(http.StatusOK, resp)
}

// parseContacts 解析给定的邮箱/手机号，至少一个，逐个校验格式。
func parseContacts(email, phone string) ([]model.Contact, error) {
	var out []model.Contact
	if email != "" {
		ct, err := model.ParseContact(email)
		if err != nil || !ct.IsEmail() {
			return nil, model.ErrInvalidEmail
		}
		out = append(out, ct)
	}
	if phone != "" {
		ct, err := model.ParseContact(phone)
		if err != nil || ct.IsEmail() {
			return nil, model.ErrInvalidPhone
		}
		out = append(out, ct)
	}
	return out, nil
}

// pickDelivery 选择投递联系方式：显式 sendCodeBy 优先，否则邮箱优先。
func pickDelivery(contacts []model.Contact, sendCodeBy string) model.Contact {
	for _, ct := range contacts {
		if sendCodeBy == "phone" && !ct.IsEmail() {
			return ct
		}
		if sendCodeBy == "email" && ct.IsEmail() {
			return ct
		}
	}
	for _, ct := range contacts {
		if ct.IsEmail() {
			return ct
		}
	}
	return contacts[0]
}
