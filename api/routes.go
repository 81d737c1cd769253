package api

import (
	"backend/internal/auth"
	"backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册全部业务路由
// /api 与 /api/v1 挂载相同的路由组，方便客户端渐进迁移
func RegisterRoutes(r *gin.Engine, c *AppContainer, h *Handlers) {
	authMW := auth.AuthMiddleware(c.JWTService)
	rateMW := middleware.RateLimitMiddleware(c.RateLimiter)
	wsRateMW := middleware.RateLimitByWorkspace(c.RateLimiter)

	for _, prefix := range []string{"/api", "/api/v1"} {
		g := r.Group(prefix)
		g.Use(authMW, rateMW)

		registerCampaignRoutes(g, h, wsRateMW)
		registerContactRoutes(g, h)
		registerApprovalRoutes(g, h)
		registerGuardRuleRoutes(g, h)
	}
}

// registerCampaignRoutes 活动管理与执行路由
func registerCampaignRoutes(g *gin.RouterGroup, h *Handlers, wsRateMW gin.HandlerFunc) {
	campaigns := g.Group("/campaigns")
	{
		campaigns.POST("", h.Campaigns.CreateCampaign)
		campaigns.GET("", h.Campaigns.ListCampaigns)
		campaigns.GET("/:id", h.Campaigns.GetCampaign)
		// 启动会批量物化步骤，按工作区单独限流
		campaigns.POST("/:id/launch", wsRateMW, h.Campaigns.LaunchCampaign)
		campaigns.POST("/:id/pause", h.Campaigns.PauseCampaign)
		campaigns.POST("/:id/resume", h.Campaigns.ResumeCampaign)
		campaigns.GET("/:id/steps", h.Campaigns.ListSteps)
		campaigns.GET("/:id/logs", h.Campaigns.ListExecutionLogs)
	}
}

// registerContactRoutes 联系人路由
func registerContactRoutes(g *gin.RouterGroup, h *Handlers) {
	contacts := g.Group("/contacts")
	{
		contacts.POST("", h.Contacts.CreateContact)
		contacts.GET("", h.Contacts.ListContacts)
	}
}

// registerApprovalRoutes 审批队列路由
func registerApprovalRoutes(g *gin.RouterGroup, h *Handlers) {
	approvals := g.Group("/approvals")
	{
		approvals.GET("/pending", h.Approvals.ListPending)
		approvals.POST("/:id/approve", h.Approvals.Approve)
		approvals.POST("/:id/reject", h.Approvals.Reject)
	}
}

// registerGuardRuleRoutes 守护人工审批规则路由
func registerGuardRuleRoutes(g *gin.RouterGroup, h *Handlers) {
	rules := g.Group("/guard-rules")
	{
		rules.POST("", h.GuardRules.CreateRule)
		rules.GET("", h.GuardRules.ListRules)
		rules.PUT("/:id/active", h.GuardRules.SetRuleActive)
		rules.DELETE("/:id", h.GuardRules.DeleteRule)
	}
}
