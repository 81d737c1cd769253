package campaign

import "context"

// GeneratedMessage 上游为单个步骤产出的个性化内容与置信度
type GeneratedMessage struct {
	Subject    string `json:"subject,omitempty"`
	Content    string `json:"content"`
	Confidence int    `json:"confidence"` // 0-100
	Reasoning  string `json:"reasoning"`  // 审批队列展示给人工的判断依据
}

// ContentGenerator 内容/置信度生成器（上游协作方，引擎只消费）
type ContentGenerator interface {
	GenerateMessage(ctx context.Context, contact *Contact, step *WorkflowStep, campaignName string) (*GeneratedMessage, error)
}
