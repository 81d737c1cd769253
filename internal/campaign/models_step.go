package campaign

import (
	"time"

	"gorm.io/datatypes"
)

// 步骤状态机:
// pending → in_progress → {requires_approval, sent, failed}
// requires_approval → {approved, rejected}
// approved → {sent, failed}
// 终态: sent, rejected, failed
const (
	StepStatusPending          = "pending"
	StepStatusInProgress       = "in_progress"
	StepStatusRequiresApproval = "requires_approval"
	StepStatusApproved         = "approved"
	StepStatusSent             = "sent"
	StepStatusFailed           = "failed"
	StepStatusRejected         = "rejected"
)

// IsTerminalStepStatus 判断是否为终态
func IsTerminalStepStatus(status string) bool {
	switch status {
	case StepStatusSent, StepStatusFailed, StepStatusRejected:
		return true
	}
	return false
}

// ScheduledStep 单个联系人在工作流某一位置的一次渠道动作
// 唯一约束: (campaign_id, contact_id, step_index)
type ScheduledStep struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	CampaignID  string `json:"campaignId" gorm:"type:uuid;not null;index;uniqueIndex:idx_campaign_contact_step"`
	WorkspaceID string `json:"workspaceId" gorm:"type:uuid;not null;index"`
	ContactID   string `json:"contactId" gorm:"type:uuid;not null;uniqueIndex:idx_campaign_contact_step"`
	StepIndex   int    `json:"stepIndex" gorm:"not null;uniqueIndex:idx_campaign_contact_step"` // 1 起始

	Channel string `json:"channel" gorm:"size:50;not null"`
	Subject string `json:"subject" gorm:"size:512"`
	Content string `json:"content" gorm:"type:text"`

	Status      string     `json:"status" gorm:"size:50;not null;default:pending;index:idx_step_status_due"`
	ScheduledAt time.Time  `json:"scheduledAt" gorm:"not null;index:idx_step_status_due"`
	ExecutedAt  *time.Time `json:"executedAt"`

	MessageID    string `json:"messageId" gorm:"size:255"`
	ErrorMessage string `json:"errorMessage" gorm:"type:text"`

	// 审批路由
	RequiresApproval bool       `json:"requiresApproval" gorm:"default:false"`
	ApprovedBy       string     `json:"approvedBy" gorm:"type:uuid"`
	ApprovedAt       *time.Time `json:"approvedAt"`

	PersonalizationData datatypes.JSON `json:"personalizationData" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (ScheduledStep) TableName() string {
	return "scheduled_steps"
}

// 审批项状态
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// ApprovalItem 待人工决策的审批项，与处于 requires_approval 的步骤 1:1
// 不变量: 每个步骤最多存在一条 pending 状态的审批项
type ApprovalItem struct {
	ID              string `json:"id" gorm:"primaryKey;type:uuid"`
	ScheduledStepID string `json:"scheduledStepId" gorm:"type:uuid;not null;index"`
	CampaignID      string `json:"campaignId" gorm:"type:uuid;not null;index"`
	ContactID       string `json:"contactId" gorm:"type:uuid;not null"`
	WorkspaceID     string `json:"workspaceId" gorm:"type:uuid;not null;index"`

	// 动作描述
	ActionType     string         `json:"actionType" gorm:"size:50;not null"` // 渠道动作类型
	ActionData     datatypes.JSON `json:"actionData" gorm:"type:jsonb"`
	PreviewContent string         `json:"previewContent" gorm:"type:text"`

	// Sophia 判断依据
	SophiaReasoning  string `json:"sophiaReasoning" gorm:"type:text"`
	SophiaConfidence int    `json:"sophiaConfidence" gorm:"default:0"`

	Status          string     `json:"status" gorm:"size:50;not null;default:pending;index"`
	ResolvedBy      string     `json:"resolvedBy" gorm:"type:uuid"`
	ResolvedAt      *time.Time `json:"resolvedAt"`
	ResolutionNotes string     `json:"resolutionNotes" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (ApprovalItem) TableName() string {
	return "approval_items"
}

// 执行日志类型
const (
	ExecutionTypePollCycle = "poll_cycle"
	ExecutionTypeManual    = "manual"
)

// ExecutionLog 一次编排器执行的汇总记录（只追加）
type ExecutionLog struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	CampaignID  string `json:"campaignId" gorm:"type:uuid;not null;index"`
	WorkspaceID string `json:"workspaceId" gorm:"type:uuid;not null;index"`

	ExecutionType string `json:"executionType" gorm:"size:50;not null;default:poll_cycle"`
	Status        string `json:"status" gorm:"size:50;not null;default:completed"`

	TotalSteps           int `json:"totalSteps" gorm:"default:0"`
	CompletedSteps       int `json:"completedSteps" gorm:"default:0"`
	FailedSteps          int `json:"failedSteps" gorm:"default:0"`
	PendingApprovalSteps int `json:"pendingApprovalSteps" gorm:"default:0"`

	AutonomyLevelUsed string `json:"autonomyLevelUsed" gorm:"size:50"`

	StartedAt   time.Time  `json:"startedAt" gorm:"not null"`
	CompletedAt *time.Time `json:"completedAt"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

func (ExecutionLog) TableName() string {
	return "execution_logs"
}
