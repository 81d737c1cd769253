package channel

import (
	"context"
	"fmt"

	"backend/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Channels 平台支持的全部渠道
// linkedin 是未细分消息/加好友的通用 LinkedIn 触达，三者路由到同一连接器
var Channels = []string{
	"email",
	"sms",
	"linkedin",
	"linkedin_message",
	"linkedin_connection",
	"phone",
	"voicemail",
}

// DryRunSender 不做真实投递的发送器
// 记录发送日志并返回生成的 message_id，用于开发环境和尚未接入
// 真实连接器的渠道；生产部署通过 Registry.Register 覆盖
type DryRunSender struct {
	logger *zap.Logger
}

// NewDryRunSender 创建 dry-run 发送器
func NewDryRunSender() *DryRunSender {
	return &DryRunSender{logger: logger.Get()}
}

// Send 实现 Sender 接口
func (s *DryRunSender) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.Recipient == "" {
		return &SendResult{Success: false, Error: "收件地址为空"}, nil
	}

	messageID := fmt.Sprintf("dryrun-%s", uuid.New().String())
	s.logger.Info("dry-run 渠道发送",
		zap.String("channel", req.Channel),
		zap.String("recipient", req.Recipient),
		zap.String("workspaceId", req.WorkspaceID),
		zap.String("campaignId", req.CampaignID),
		zap.String("messageId", messageID),
	)
	return &SendResult{Success: true, MessageID: messageID}, nil
}

// RegisterDefaults 为所有渠道注册兜底发送器
// 先注册兜底，再按连接器配置覆盖具体渠道
func (r *Registry) RegisterDefaults(sender Sender) {
	for _, ch := range Channels {
		r.Register(ch, sender)
	}
}
