package campaign

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CreateContactRequest 创建联系人请求
type CreateContactRequest struct {
	WorkspaceID     string         `json:"workspace_id"`
	FirstName       string         `json:"first_name"`
	LastName        string         `json:"last_name"`
	Company         string         `json:"company"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	LinkedInURL     string         `json:"linkedin_url"`
	Personalization map[string]any `json:"personalization"`
}

// CreateContact 创建联系人
// 至少需要一个渠道标识，否则任何步骤都无法投递
func (s *Service) CreateContact(ctx context.Context, req *CreateContactRequest) (*Contact, error) {
	if req.Email == "" && req.Phone == "" && req.LinkedInURL == "" {
		return nil, fmt.Errorf("%w: 联系人至少需要一个渠道标识 (email/phone/linkedin_url)", ErrValidation)
	}

	contact := &Contact{
		ID:          uuid.New().String(),
		WorkspaceID: req.WorkspaceID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Company:     req.Company,
		Email:       req.Email,
		Phone:       req.Phone,
		LinkedInURL: req.LinkedInURL,
	}
	if len(req.Personalization) > 0 {
		data, err := json.Marshal(req.Personalization)
		if err != nil {
			return nil, fmt.Errorf("序列化个性化字段失败: %w", err)
		}
		contact.Personalization = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, fmt.Errorf("创建联系人失败: %w", err)
	}
	return contact, nil
}

// ListContacts 分页查询联系人
func (s *Service) ListContacts(ctx context.Context, workspaceID string, page, pageSize int) ([]*Contact, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := s.db.WithContext(ctx).Model(&Contact{}).Where("workspace_id = ?", workspaceID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计联系人数量失败: %w", err)
	}

	var contacts []*Contact
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&contacts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询联系人列表失败: %w", err)
	}
	return contacts, total, nil
}
