package tasks

// Task Types
const (
	TypeLaunchCampaign = "campaign:launch"
	TypeDispatchStep   = "engine:dispatch_step"
)

// LaunchCampaignPayload 活动启动任务载荷
// 步骤物化（联系人 × 步骤 + 内容生成）可能较慢，放到后台执行
type LaunchCampaignPayload struct {
	CampaignID  string   `json:"campaign_id"`
	WorkspaceID string   `json:"workspace_id"`
	ContactIDs  []string `json:"contact_ids"`
	UserID      string   `json:"user_id"`
}

// DispatchStepPayload 已批准步骤派发任务载荷
type DispatchStepPayload struct {
	StepID     string `json:"step_id"`
	CampaignID string `json:"campaign_id"`
}
