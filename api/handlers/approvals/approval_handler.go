package approvals

import (
	"errors"
	"net/http"
	"strconv"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/campaign"
	"backend/internal/engine/approval"

	"github.com/gin-gonic/gin"
)

// ApprovalHandler 审批队列 Handler
type ApprovalHandler struct {
	manager *approval.Manager
}

// NewApprovalHandler 创建 ApprovalHandler 实例
func NewApprovalHandler(manager *approval.Manager) *ApprovalHandler {
	return &ApprovalHandler{manager: manager}
}

// ListPending 查询待审批项
// @Summary 查询待审批项
// @Tags Approvals
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

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

	items, total, err := h.manager.ListPending(c.Request.Context(), userCtx.WorkspaceID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.NewListResponse(items, page, pageSize, total))
}

// resolveRequest 裁决请求体
type resolveRequest struct {
	Notes string `json:"notes"`
}

// Approve 批准审批项
// @Summary 批准审批项
// @Description 对应步骤进入 approved，排队等待执行
// @Tags Approvals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "审批项 ID"
// @Param request body resolveRequest false "备注"
// @Success 200 {object} response.APIResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/approvals/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.resolve(c, campaign.ApprovalStatusApproved, "审批项已批准")
}

// Reject 驳回审批项
// @Summary 驳回审批项
// @Description 对应步骤进入终态 rejected，不会重新排队
// @Tags Approvals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "审批项 ID"
// @Param request body resolveRequest false "备注"
// @Success 200 {object} response.APIResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/approvals/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.resolve(c, campaign.ApprovalStatusRejected, "审批项已驳回")
}

func (h *ApprovalHandler) resolve(c *gin.Context, decision, successMsg string) {
	userCtx, _ := auth.GetUserContext(c)

	var req resolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "请求参数错误: " + err.Error()})
			return
		}
	}

	err := h.manager.Resolve(c.Request.Context(), userCtx.WorkspaceID, c.Param("id"), decision, userCtx.UserID, req.Notes)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, campaign.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, campaign.ErrInvalidTransition):
			status = http.StatusConflict
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: successMsg})
}
