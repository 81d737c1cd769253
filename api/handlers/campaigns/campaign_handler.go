package campaigns

import (
	"errors"
	"net/http"
	"strconv"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/campaign"
	"backend/internal/infra/queue"
	"backend/internal/worker/tasks"

	"github.com/gin-gonic/gin"
)

// CampaignHandler 外联活动管理 Handler
type CampaignHandler struct {
	service     *campaign.Service
	queueClient queue.Client
}

// NewCampaignHandler 创建 CampaignHandler 实例
// queueClient 可为 nil，此时启动操作同步执行
func NewCampaignHandler(service *campaign.Service, queueClient queue.Client) *CampaignHandler {
	return &CampaignHandler{service: service, queueClient: queueClient}
}

// CreateCampaign 创建活动
// @Summary 创建外联活动
// @Description 创建草稿态活动，工作流定义在此时验证
// @Tags Campaigns
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body campaign.CreateCampaignRequest true "活动创建参数"
// @Success 201 {object} campaign.Campaign
// @Failure 400 {object} response.ErrorResponse
// @Router /api/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	var req campaign.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "请求参数错误: " + err.Error()})
		return
	}

	req.WorkspaceID = userCtx.WorkspaceID
	req.CreatedBy = userCtx.UserID

	created, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, campaign.ErrValidation) {
			status = http.StatusBadRequest
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ListCampaigns 查询活动列表
// @Summary 查询活动列表
// @Tags Campaigns
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)
	page, pageSize := pagination(c)

	items, total, err := h.service.List(c.Request.Context(), userCtx.WorkspaceID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.NewListResponse(items, page, pageSize, total))
}

// GetCampaign 查询活动详情
// @Summary 查询活动详情
// @Tags Campaigns
// @Security BearerAuth
// @Produce json
// @Param id path string true "活动 ID"
// @Success 200 {object} campaign.Campaign
// @Failure 404 {object} response.ErrorResponse
// @Router /api/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	item, err := h.service.Get(c.Request.Context(), userCtx.WorkspaceID, c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, campaign.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, item)
}

// launchRequest 启动请求体
type launchRequest struct {
	ContactIDs []string `json:"contact_ids"`
}

// LaunchCampaign 启动活动
// @Summary 启动活动
// @Description 为每个联系人物化全部步骤；队列可用时异步执行
// @Tags Campaigns
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "活动 ID"
// @Param request body launchRequest false "目标联系人，空则使用全部"
// @Success 202 {object} response.APIResponse
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/campaigns/{id}/launch [post]
func (h *CampaignHandler) LaunchCampaign(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)
	campaignID := c.Param("id")

	var req launchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "请求参数错误: " + err.Error()})
			return
		}
	}

	if h.queueClient != nil {
		err := h.queueClient.EnqueueLaunchCampaign(tasks.LaunchCampaignPayload{
			CampaignID:  campaignID,
			WorkspaceID: userCtx.WorkspaceID,
			ContactIDs:  req.ContactIDs,
			UserID:      userCtx.UserID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, response.APIResponse{Success: true, Message: "活动启动任务已入队"})
		return
	}

	created, err := h.service.Launch(c.Request.Context(), userCtx.WorkspaceID, campaignID, req.ContactIDs)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, campaign.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{
		Success: true,
		Message: "活动已启动",
		Data:    gin.H{"steps_created": created},
	})
}

// PauseCampaign 暂停活动
// @Summary 暂停活动
// @Tags Campaigns
// @Security BearerAuth
// @Produce json
// @Param id path string true "活动 ID"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/campaigns/{id}/pause [post]
func (h *CampaignHandler) PauseCampaign(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	if err := h.service.Pause(c.Request.Context(), userCtx.WorkspaceID, c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "活动已暂停"})
}

// ResumeCampaign 恢复活动
// @Summary 恢复活动
// @Tags Campaigns
// @Security BearerAuth
// @Produce json
// @Param id path string true "活动 ID"
// @Success 200 {object} response.APIResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/campaigns/{id}/resume [post]
func (h *CampaignHandler) ResumeCampaign(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	if err := h.service.Resume(c.Request.Context(), userCtx.WorkspaceID, c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "活动已恢复"})
}

// ListSteps 查询活动的步骤列表
// @Summary 查询活动步骤
// @Tags Campaigns
// @Security BearerAuth
// @Produce json
// @Param id path string true "活动 ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/campaigns/{id}/steps [get]
func (h *CampaignHandler) ListSteps(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)
	page, pageSize := pagination(c)

	steps, total, err := h.service.ListSteps(c.Request.Context(), userCtx.WorkspaceID, c.Param("id"), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.NewListResponse(steps, page, pageSize, total))
}

// ListExecutionLogs 查询活动执行日志
// @Summary 查询活动执行日志
// @Tags Campaigns
// @Security BearerAuth
// @Produce json
// @Param id path string true "活动 ID"
// @Param limit query int false "返回条数"
// @Success 200 {object} response.APIResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/campaigns/{id}/logs [get]
func (h *CampaignHandler) ListExecutionLogs(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	logs, err := h.service.ListExecutionLogs(c.Request.Context(), userCtx.WorkspaceID, c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Data: logs})
}

// pagination 解析分页参数
func pagination(c *gin.Context) (int, int) {
	page := 1
	pageSize := 20
	if v := c.Query("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			page = p
		}
	}
	if v := c.Query("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			pageSize = ps
		}
	}
	return page, pageSize
}
