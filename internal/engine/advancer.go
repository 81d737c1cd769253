package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/campaign"
	"backend/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Advancer 步骤推进器
// 前置步骤到达 sent 终态后激活同一联系人的下一步；
// failed / rejected 不推进，该联系人的序列停在原地等待人工介入
type Advancer struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAdvancer 创建步骤推进器
func NewAdvancer(db *gorm.DB) *Advancer {
	return &Advancer{db: db, logger: logger.Get()}
}

// Advance 激活 (campaignID, contactID, completedIndex+1) 的步骤
// 下一步的 scheduled_at 设为 now + 该步骤配置的延迟，零延迟即刻到期；
// 只作用于 pending 状态的行，联系人已走完工作流时是无害的空操作
func (a *Advancer) Advance(ctx context.Context, campaignID, contactID string, completedIndex int) error {
	var c campaign.Campaign
	err := a.db.WithContext(ctx).
		Select("id", "workflow").
		Where("id = ?", campaignID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return campaign.ErrNotFound
		}
		return fmt.Errorf("加载活动失败: %w", err)
	}

	nextIndex := completedIndex + 1
	if nextIndex > len(c.Workflow.Steps) {
		// 联系人已完成全部步骤
		return nil
	}

	nextDef := c.Workflow.Steps[nextIndex-1]
	now := time.Now().UTC()
	scheduledAt := now.Add(nextDef.DelayDuration())

	result := a.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("campaign_id = ? AND contact_id = ? AND step_index = ? AND status = ?",
			campaignID, contactID, nextIndex, campaign.StepStatusPending).
		Updates(map[string]any{
			"scheduled_at": scheduledAt,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("激活下一步失败: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		a.logger.Debug("下一步已激活",
			zap.String("campaignId", campaignID),
			zap.String("contactId", contactID),
			zap.Int("stepIndex", nextIndex),
			zap.Time("scheduledAt", scheduledAt),
		)
	}
	return nil
}
