package campaign

import "errors"

// 领域错误
var (
	// ErrValidation 工作流/请求定义非法，在生成任何步骤之前拒绝
	ErrValidation = errors.New("工作流定义非法")

	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("记录不存在")

	// ErrDuplicateApproval 步骤已存在未关闭的审批项
	ErrDuplicateApproval = errors.New("该步骤已存在待处理的审批项")

	// ErrInvalidTransition 非法的状态迁移（终态不可变）
	ErrInvalidTransition = errors.New("非法的步骤状态迁移")

	// ErrCampaignNotActive 活动不处于可执行状态
	ErrCampaignNotActive = errors.New("活动未激活")
)
