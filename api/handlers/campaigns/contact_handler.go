package campaigns

import (
	"errors"
	"net/http"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/campaign"

	"github.com/gin-gonic/gin"
)

// ContactHandler 联系人管理 Handler
type ContactHandler struct {
	service *campaign.Service
}

// NewContactHandler 创建 ContactHandler 实例
func NewContactHandler(service *campaign.Service) *ContactHandler {
	return &ContactHandler{service: service}
}

// CreateContact 创建联系人
// @Summary 创建联系人
// @Tags Contacts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body campaign.CreateContactRequest true "联系人参数"
// @Success 201 {object} campaign.Contact
// @Failure 400 {object} response.ErrorResponse
// @Router /api/contacts [post]
func (h *ContactHandler) CreateContact(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)

	var req campaign.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "请求参数错误: " + err.Error()})
		return
	}
	req.WorkspaceID = userCtx.WorkspaceID

	contact, err := h.service.CreateContact(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, campaign.ErrValidation) {
			status = http.StatusBadRequest
		}
		c.JSON(status, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, contact)
}

// ListContacts 查询联系人列表
// @Summary 查询联系人列表
// @Tags Contacts
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/contacts [get]
func (h *ContactHandler) ListContacts(c *gin.Context) {
	userCtx, _ := auth.GetUserContext(c)
	page, pageSize := pagination(c)

	contacts, total, err := h.service.ListContacts(c.Request.Context(), userCtx.WorkspaceID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.NewListResponse(contacts, page, pageSize, total))
}
