// Package metrics 暴露 Prometheus 指标。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// InviteCreatedTotal 成功创建（或重发）的邀请数。
	InviteCreatedTotal prometheus.Counter
	// CodeSentTotal 按通道统计的验证码投递数。
	CodeSentTotal *prometheus.CounterVec
	// CodeDevModeTotal 投递降级为 dev-mode 响应的次数。
	CodeDevModeTotal prometheus.Counter
	// CodeVerifiedTotal 验证码核验成功数。
	CodeVerifiedTotal prometheus.Counter
	// CodeRejectedTotal 验证码核验失败数。
	CodeRejectedTotal prometheus.Counter
	// LoginFailedTotal 登录失败数。
	LoginFailedTotal prometheus.Counter
	// SendRateLimitedTotal 被发码限流拦下的请求数。
	SendRateLimitedTotal prometheus.Counter
	// RealtimeClients 当前 WebSocket 连接数。
	RealtimeClients prometheus.Gauge
)

var initOnce sync.Once

// InitMetrics 注册所有指标，可重复调用（测试里会多次触发）。
func InitMetrics() {
	initOnce.Do(func() {
		InviteCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planni_invite_created_total",
			Help: "Invitations created or re-issued.",
		})
		CodeSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planni_code_sent_total",
			Help: "One-time codes dispatched, by channel.",
		}, []string{"method"})
		CodeDevModeTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planni_code_devmode_total",
			Help: "Code deliveries degraded to dev-mode responses.",
		})
		CodeVerifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planni_code_verified_total",
			Help: "One-time codes verified successfully.",
		})
		CodeRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planni_code_rejected_total",
			Help: "One-time code verifications rejected.",
		})
		LoginFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planni_login_failed_total",
			Help: "Failed login attempts.",
		})
		SendRateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planni_send_rate_limited_total",
			Help: "Code send requests rejected by the per-contact rate limit.",
		})
		RealtimeClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planni_realtime_clients",
			Help: "Currently connected realtime clients.",
		})

		prometheus.MustRegister(
			InviteCreatedTotal,
			CodeSentTotal,
			CodeDevModeTotal,
			CodeVerifiedTotal,
			CodeRejectedTotal,
			LoginFailedTotal,
			SendRateLimitedTotal,
			RealtimeClients,
		)
	})
}
