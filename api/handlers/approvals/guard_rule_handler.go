package approvals

import (
	"errors"
	"net/http"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/campaign"
	"backend/internal/engine"

	"github.com/gin-gonic/gin"
)

// GuardRuleHandler 守护规则管理 Handler
type GuardRuleHandler struct {
	rules *engine.RuleEngine
}

// NewGuardRuleHandler 创建 GuardRuleHandler 实例
func NewGuardRuleHandler(rules *engine.RuleEngine) *GuardRuleHandler {
	return &GuardRuleHandler{rules: rules}
}

// createRuleRequest 创建规则请求体
type createRuleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Expression  string `json:"expression" binding:"required"`
}

// CreateRule 创建守护规则
// @Summary 创建守护规则
// @Description 表达式命中的步骤会被强制转入人工审批
// @Tags GuardRules
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body createRuleRequest true "规则参数"
// @Success 201 {object} engine.GuardRule
// @Failure 400 {object} response.ErrorResponse
// @Router /api/guard-rules [post]
func (h *GuardRuleHandler) CreateRule(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	var req createRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "请求参数错误: " + err.Error()})
		return
	}

	rule := &engine.GuardRule{
		WorkspaceID: userCtx.WorkspaceID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		IsActive:    true,
	}

	if err := h.rules.CreateRule(c.Request.Context(), rule); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, campaign.ErrValidation) {
			status = http.StatusBadRequest
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// ListRules 查询守护规则
// @Summary 查询守护规则列表
// @Tags GuardRules
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.APIResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/guard-rules [get]
func (h *GuardRuleHandler) ListRules(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	rules, err := h.rules.ListRules(c.Request.Context(), userCtx.WorkspaceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Data: rules})
}

// setActiveRequest 启停请求体
type setActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetRuleActive 启用或停用守护规则
// @Summary 启用或停用守护规则
// @Tags GuardRules
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "规则 ID"
// @Param request body setActiveRequest true "启停参数"
// @Success 200 {object} response.APIResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/guard-rules/{id}/active [put]
func (h *GuardRuleHandler) SetRuleActive(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "请求参数错误: " + err.Error()})
		return
	}

	err := h.rules.SetRuleActive(c.Request.Context(), userCtx.WorkspaceID, c.Param("id"), *req.IsActive)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, campaign.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "守护规则已更新"})
}

// DeleteRule 删除守护规则
// @Summary 删除守护规则
// @Tags GuardRules
// @Security BearerAuth
// @Produce json
// @Param id path string true "规则 ID"
// @Success 200 {object} response.APIResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/guard-rules/{id} [delete]
func (h *GuardRuleHandler) DeleteRule(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	err := h.rules.DeleteRule(c.Request.Context(), userCtx.WorkspaceID, c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, campaign.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{Success: true, Message: "守护规则已删除"})
}
