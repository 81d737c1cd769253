package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/campaign"
	"backend/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunLogger 活动执行汇总记录器
// 每轮编排器处理过的活动写一行 ExecutionLog（只追加，用于可观测性）
type RunLogger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRunLogger 创建执行记录器
func NewRunLogger(db *gorm.DB) *RunLogger {
	return &RunLogger{db: db, logger: logger.Get()}
}

// statusCount 聚合查询的行结构
type statusCount struct {
	Status string
	Count  int
}

// Record 为活动写一条执行汇总
// 用单条 GROUP BY status 聚合查询统计各状态数量，
// autonomy_level_used 取活动当前配置
func (l *RunLogger) Record(ctx context.Context, campaignID string, executionType string, startedAt time.Time) (*campaign.ExecutionLog, error) {
	var c campaign.Campaign
	err := l.db.WithContext(ctx).
		Select("id", "workspace_id", "autonomy_level").
		Where("id = ?", campaignID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, campaign.ErrNotFound
		}
		return nil, fmt.Errorf("加载活动失败: %w", err)
	}

	var counts []statusCount
	err = l.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Select("status, COUNT(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("聚合步骤状态失败: %w", err)
	}

	now := time.Now().UTC()
	log := &campaign.ExecutionLog{
		ID:                uuid.New().String(),
		CampaignID:        campaignID,
		WorkspaceID:       c.WorkspaceID,
		ExecutionType:     executionType,
		Status:            "completed",
		AutonomyLevelUsed: c.AutonomyLevel,
		StartedAt:         startedAt.UTC(),
		CompletedAt:       &now,
	}

	for _, sc := range counts {
		log.TotalSteps += sc.Count
		switch sc.Status {
		case campaign.StepStatusSent:
			log.CompletedSteps += sc.Count
		case campaign.StepStatusFailed:
			log.FailedSteps += sc.Count
		case campaign.StepStatusRequiresApproval:
			log.PendingApprovalSteps += sc.Count
		}
	}

	if err := l.db.WithContext(ctx).Create(log).Error; err != nil {
		return nil, fmt.Errorf("写入执行日志失败: %w", err)
	}

	l.logger.Debug("执行日志已写入",
		zap.String("campaignId", campaignID),
		zap.Int("total", log.TotalSteps),
		zap.Int("completed", log.CompletedSteps),
		zap.Int("failed", log.FailedSteps),
		zap.Int("pendingApproval", log.PendingApprovalSteps),
	)
	return log, nil
}
