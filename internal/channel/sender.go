package channel

import (
	"context"
	"fmt"
	"sync"
)

// SendRequest 一次渠道发送请求
type SendRequest struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"` // 邮箱、手机号或 LinkedIn URL
	Subject   string `json:"subject,omitempty"`
	Content   string `json:"content"`

	WorkspaceID string `json:"workspace_id"`
	CampaignID  string `json:"campaign_id"`
	ContactID   string `json:"contact_id"`
}

// SendResult 渠道发送结果
type SendResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sender 渠道发送器接口
// 实际的邮件/SMS/LinkedIn/电话传输由各渠道 connector 实现
type Sender interface {
	Send(ctx context.Context, req *SendRequest) (*SendResult, error)
}

// SenderFunc 函数适配器
type SenderFunc func(ctx context.Context, req *SendRequest) (*SendResult, error)

// Send 实现 Sender 接口
func (f SenderFunc) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	return f(ctx, req)
}

// Registry 按渠道注册发送器，路由发送请求
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

// NewRegistry 创建渠道注册表
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register 注册渠道发送器，重复注册以后者为准
func (r *Registry) Register(channel string, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[channel] = sender
}

// Send 将请求路由到对应渠道的发送器
func (r *Registry) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	r.mu.RLock()
	sender, ok := r.senders[req.Channel]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("未注册的渠道: %s", req.Channel)
	}
	return sender.Send(ctx, req)
}
