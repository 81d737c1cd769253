package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/campaign"
	"backend/internal/channel"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/safety"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RateLimitError 渠道限额拦截
// 这是路由结果而不是执行失败：步骤会转入审批队列等待人工处理
type RateLimitError struct {
	Reason string
}

// Error 实现 error 接口
func (e *RateLimitError) Error() string {
	return e.Reason
}

// Executor 单步执行器
// 把一个已认领（in_progress）的步骤派发给渠道发送器并记录结果
type Executor struct {
	db     *gorm.DB
	sender channel.Sender
	safety safety.Controller
	logger *zap.Logger

	// 可插拔重试策略，默认不重试（失败一律交人工处理）
	retryPolicy RetryPolicy
}

// RetryPolicy 重试策略
// 返回 true 表示对发送失败再尝试一次；默认实现永远返回 false
type RetryPolicy interface {
	ShouldRetry(attempt int, sendErr error) bool
}

// noRetryPolicy 默认策略：不重试
type noRetryPolicy struct{}

func (noRetryPolicy) ShouldRetry(int, error) bool { return false }

// ExecutorOption 自定义配置
type ExecutorOption func(*Executor)

// WithRetryPolicy 注入重试策略
func WithRetryPolicy(p RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		if p != nil {
			e.retryPolicy = p
		}
	}
}

// NewExecutor 创建单步执行器
func NewExecutor(db *gorm.DB, sender channel.Sender, safetyCtrl safety.Controller, opts ...ExecutorOption) *Executor {
	e := &Executor{
		db:          db,
		sender:      sender,
		safety:      safetyCtrl,
		logger:      logger.Get(),
		retryPolicy: noRetryPolicy{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Execute 执行一个步骤
// 返回 (true, nil) 表示已发送（可推进下一步）；(false, nil) 表示发送失败已记录；
// 限额拦截返回 *RateLimitError，基础设施错误原样返回
func (e *Executor) Execute(ctx context.Context, step *campaign.ScheduledStep) (bool, error) {
	// 每次派发前都必须咨询安全控制器，独立于编排器自身的节奏
	decision, err := e.safety.CanPerformAction(ctx, step.WorkspaceID, step.Channel)
	if err != nil {
		return false, fmt.Errorf("咨询安全控制器失败: %w", err)
	}
	if !decision.Allowed {
		return false, &RateLimitError{Reason: decision.Reason}
	}

	var contact campaign.Contact
	err = e.db.WithContext(ctx).
		Where("id = ?", step.ContactID).
		First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, e.markFailed(ctx, step, "联系人不存在")
		}
		return false, fmt.Errorf("加载联系人失败: %w", err)
	}

	recipient := contact.Recipient(step.Channel)
	if recipient == "" {
		return false, e.markFailed(ctx, step, fmt.Sprintf("联系人缺少 %s 渠道地址", step.Channel))
	}

	req := &channel.SendRequest{
		Channel:     step.Channel,
		Recipient:   recipient,
		Subject:     step.Subject,
		Content:     step.Content,
		WorkspaceID: step.WorkspaceID,
		CampaignID:  step.CampaignID,
		ContactID:   step.ContactID,
	}

	result, sendErr := e.send(ctx, req)
	if sendErr != nil {
		return false, e.markFailed(ctx, step, sendErr.Error())
	}
	if !result.Success {
		return false, e.markFailed(ctx, step, result.Error)
	}

	now := time.Now().UTC()
	update := e.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("id = ? AND status = ?", step.ID, campaign.StepStatusInProgress).
		Updates(map[string]any{
			"status":      campaign.StepStatusSent,
			"executed_at": now,
			"message_id":  result.MessageID,
			"updated_at":  now,
		})
	if update.Error != nil {
		return false, fmt.Errorf("记录发送结果失败: %w", update.Error)
	}
	if update.RowsAffected == 0 {
		// 步骤在发送过程中被其他路径改写，按已丢失认领处理
		return false, campaign.ErrInvalidTransition
	}

	step.Status = campaign.StepStatusSent
	step.ExecutedAt = &now
	step.MessageID = result.MessageID

	if err := e.safety.RecordAction(ctx, step.WorkspaceID, step.Channel); err != nil {
		e.logger.Warn("记录安全计数失败", zap.String("stepId", step.ID), zap.Error(err))
	}

	metrics.StepsExecutedTotal.WithLabelValues(step.Channel, campaign.StepStatusSent, step.WorkspaceID).Inc()
	e.logger.Info("步骤已发送",
		zap.String("stepId", step.ID),
		zap.String("channel", step.Channel),
		zap.String("messageId", result.MessageID),
	)
	return true, nil
}

// send 调用渠道发送器并上报耗时，按策略重试
func (e *Executor) send(ctx context.Context, req *channel.SendRequest) (*channel.SendResult, error) {
	attempt := 0
	for {
		start := time.Now()
		result, err := e.sender.Send(ctx, req)
		metrics.StepSendDuration.WithLabelValues(req.Channel).Observe(time.Since(start).Seconds())

		if err == nil && result != nil && result.Success {
			return result, nil
		}

		sendErr := err
		if sendErr == nil {
			sendErr = errors.New(result.Error)
		}

		attempt++
		if !e.retryPolicy.ShouldRetry(attempt, sendErr) {
			if err != nil {
				return nil, err
			}
			return result, nil
		}
	}
}

// markFailed 把步骤标记为 failed 终态
// 失败按 (contact, stepIndex) 隔离，不影响同活动其他联系人
func (e *Executor) markFailed(ctx context.Context, step *campaign.ScheduledStep, errMsg string) error {
	now := time.Now().UTC()
	update := e.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("id = ? AND status = ?", step.ID, campaign.StepStatusInProgress).
		Updates(map[string]any{
			"status":        campaign.StepStatusFailed,
			"error_message": errMsg,
			"updated_at":    now,
		})
	if update.Error != nil {
		return fmt.Errorf("标记步骤失败状态出错: %w", update.Error)
	}

	step.Status = campaign.StepStatusFailed
	step.ErrorMessage = errMsg

	metrics.StepsExecutedTotal.WithLabelValues(step.Channel, campaign.StepStatusFailed, step.WorkspaceID).Inc()
	e.logger.Warn("步骤发送失败",
		zap.String("stepId", step.ID),
		zap.String("channel", step.Channel),
		zap.String("error", errMsg),
	)
	return nil
}
