package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/bynour1/projet-planni/internal/api/auth"
	"github.com/bynour1/projet-planni/internal/api/invite"
	"github.com/bynour1/projet-planni/internal/api/middleware"
	"github.com/bynour1/projet-planni/internal/config"
	"github.com/bynour1/projet-planni/internal/model"
	"github.com/bynour1/projet-planni/internal/notify"
	"github.com/bynour1/projet-planni/internal/pkg/metrics"
	"github.com/bynour1/projet-planni/internal/pkg/ratelimit"
	"github.com/bynour1/projet-planni/internal/pkg/realtime"
	"github.com/bynour1/projet-planni/internal/store"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、WebSocket Hub 以及 Gin 路由引擎。
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	rdb       *redis.Client
	router    *gin.Engine
	hub       *realtime.Hub
	auth      *auth.Handler
	invite    *invite.Handler
	users     UserLister
	plannings PlanningStore
	events    EventStore
}

type UserLister interface {
	List(ctx context.Context) ([]model.User, error)
}

type PlanningStore interface {
	Get(ctx context.Context) (model.Planning, error)
	Replace(ctx context.Context, planning model.Planning) error
}

type EventStore interface {
	Create(ctx context.Context, event *model.Event) (uint, error)
	ListForCalendar(ctx context.Context, calendarID, rangeStart, rangeEnd string) ([]model.Event, error)
	AddAttendee(ctx context.Context, attendee *model.Attendee) error
	SetRSVP(ctx context.Context, eventID uint, contact model.Contact, status string) error
	SetPermission(ctx context.Context, eventID uint, contact model.Contact, canEdit bool) error
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（验证码存储与发码限流）
// 3. 组装通知通道与 WebSocket Hub
// 4. 初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.PlanningDay{}, &model.Event{}, &model.Attendee{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	dispatcher := notify.NewChannelDispatcher(
		notify.NewEmailSender(&cfg.Email, logger),
		notify.NewTelegramSender(&cfg.Telegram),
		notify.NewTwilioSender(&cfg.Twilio),
		logger,
	)

	users := store.NewUserStore(db)
	codes := store.NewCodeStore(rdb, cfg.App.CodeTTL)
	limiter := ratelimit.NewRedisRateLimiter(rdb, "planni:sendcode", cfg.App.SendRateLimit, cfg.App.SendRateBurst, nil)
	hub := realtime.NewHub(logger)

	// 初始化 Prometheus 指标
	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		rdb:       rdb,
		router:    r,
		hub:       hub,
		auth:      auth.NewHandler(users, codes, dispatcher, limiter, cfg.Security.JWTSecret, logger),
		invite:    invite.NewHandler(users, codes, dispatcher, limiter, invite.NetResolver{}, hub, logger),
		users:     users,
		plannings: store.NewPlanningStore(db),
		events:    store.NewEventStore(db),
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/ws", s.handleWebSocket)

	// 公开通道：登录与邀请确认闭环
	s.router.POST("/login", s.auth.Login)
	s.router.POST("/verify-code", s.invite.VerifyCode)
	s.router.POST("/create-user", s.invite.CreateUser)
	s.router.POST("/send-code", s.invite.SendCode)
	s.router.POST("/check-contact", s.invite.CheckContact)
	s.router.POST("/forgot-password", s.auth.ForgotPassword)
	s.router.POST("/reset-password", s.auth.ResetPassword)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret))
	authed.POST("/change-password", s.auth.ChangePassword)
	authed.GET("/users", s.handleListUsers)
	authed.GET("/planning", s.handleGetPlanning)
	authed.GET("/calendars/:id/events", s.handleListEvents)
	authed.POST("/events/:id/rsvp", s.handleRSVP)

	admin := authed.Group("/")
	admin.Use(middleware.RequireAdmin())
	admin.POST("/invite-user", s.invite.Invite)
	admin.POST("/create-user-direct", s.invite.CreateUserDirect)
	admin.POST("/admin/activate", s.invite.Activate)
	admin.POST("/planning/event", s.handleAddPlanningEvent)
	admin.PUT("/planning/event", s.handleUpdatePlanningEvent)
	admin.DELETE("/planning/event", s.handleDeletePlanningEvent)
	admin.POST("/planning/replace", s.handleReplacePlanning)
	admin.POST("/calendars/:id/events", s.handleCreateEvent)
	admin.POST("/events/:id/grant-edit", s.handleGrantEdit)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "component": "mysql"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "component": "redis"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.hub.ClientCount()})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.HandleUpgrade(c.Writer, c.Request)
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		s.logger.Error("list users failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}
