package campaign

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
)

// 自治等级
const (
	AutonomyManualApproval = "manual_approval" // 所有动作都需人工审批
	AutonomySemi           = "semi_autonomous" // 按渠道与置信度决定
	AutonomyFull           = "full_autonomous" // 全部自动执行
)

// 渠道类型
const (
	ChannelEmail              = "email"
	ChannelSMS                = "sms"
	ChannelLinkedIn           = "linkedin"
	ChannelLinkedInMessage    = "linkedin_message"
	ChannelLinkedInConnection = "linkedin_connection"
	ChannelPhone              = "phone"
	ChannelVoicemail          = "voicemail"
)

// 活动状态
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusActive    = "active"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
)

// 延迟单位
const (
	DelayUnitMinutes = "minutes"
	DelayUnitHours   = "hours"
	DelayUnitDays    = "days"
)

// WorkflowStep 工作流中的单个渠道步骤
type WorkflowStep struct {
	Channel         string `json:"channel"`
	SubjectTemplate string `json:"subject_template,omitempty"`
	ContentTemplate string `json:"content_template"`
	Delay           int    `json:"delay"`      // 相对上一步的延迟
	DelayUnit       string `json:"delay_unit"` // minutes, hours, days
}

// DelayDuration 换算延迟时长，未知单位按天处理
func (s *WorkflowStep) DelayDuration() time.Duration {
	switch s.DelayUnit {
	case DelayUnitMinutes:
		return time.Duration(s.Delay) * time.Minute
	case DelayUnitHours:
		return time.Duration(s.Delay) * time.Hour
	default:
		return time.Duration(s.Delay) * 24 * time.Hour
	}
}

// WorkflowDefinition 活动工作流定义（有序步骤列表）
type WorkflowDefinition struct {
	Steps []WorkflowStep `json:"steps"`
}

// Value 实现 driver.Valuer 接口，用于 GORM 存储 JSONB
func (w WorkflowDefinition) Value() (driver.Value, error) {
	return json.Marshal(w)
}

// Scan 实现 sql.Scanner 接口，用于 GORM 读取 JSONB
func (w *WorkflowDefinition) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, &w)
}

// Campaign 外联活动
type Campaign struct {
	ID          string             `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID string             `json:"workspaceId" gorm:"type:uuid;not null;index"`
	Name        string             `json:"name" gorm:"size:255;not null"`
	Description string             `json:"description" gorm:"type:text"`
	Workflow    WorkflowDefinition `json:"workflow" gorm:"type:jsonb"`

	// 自治策略
	AutonomyLevel     string `json:"autonomyLevel" gorm:"size:50;not null;default:manual_approval"`
	ApprovalThreshold int    `json:"approvalThreshold" gorm:"default:80"` // 置信度阈值 (0-100)

	Status string `json:"status" gorm:"size:50;not null;default:draft;index"`

	CreatedBy  string     `json:"createdBy" gorm:"type:uuid"`
	LaunchedAt *time.Time `json:"launchedAt"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Contact 潜在客户（对执行引擎只读）
type Contact struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID string `json:"workspaceId" gorm:"type:uuid;not null;index"`

	FirstName string `json:"firstName" gorm:"size:100"`
	LastName  string `json:"lastName" gorm:"size:100"`
	Company   string `json:"company" gorm:"size:255"`

	// 渠道标识
	Email       string `json:"email" gorm:"size:255;index"`
	Phone       string `json:"phone" gorm:"size:50"`
	LinkedInURL string `json:"linkedinUrl" gorm:"size:512"`

	// 个性化字段
	Personalization datatypes.JSON `json:"personalization" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Recipient 返回指定渠道对应的投递地址
func (c *Contact) Recipient(channel string) string {
	switch channel {
	case ChannelEmail:
		return c.Email
	case ChannelSMS, ChannelPhone, ChannelVoicemail:
		return c.Phone
	default:
		return c.LinkedInURL
	}
}
