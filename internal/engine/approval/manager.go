package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/campaign"
	"backend/internal/logger"
	"backend/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Manager 审批队列管理器
// 负责审批项的完整生命周期：创建（幂等守卫）、人工裁决、事件广播
type Manager struct {
	db     *gorm.DB
	bus    *ResolutionBus
	logger *zap.Logger
}

// ManagerOption 自定义配置
type ManagerOption func(*Manager)

// WithResolutionBus 注入事件总线
func WithResolutionBus(bus *ResolutionBus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

// WithManagerLogger 注入自定义日志器
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager 创建审批队列管理器
func NewManager(db *gorm.DB, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		db:     db,
		logger: logger.Get(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mgr)
		}
	}
	return mgr
}

// Bus 返回事件总线（供编排器订阅）
func (m *Manager) Bus() *ResolutionBus {
	return m.bus
}

// CreateApprovalItem 为步骤创建审批项
// 幂等守卫：同一步骤已存在 pending 审批项时返回 ErrDuplicateApproval；
// 同一事务内把步骤置为 requires_approval
func (m *Manager) CreateApprovalItem(ctx context.Context, step *campaign.ScheduledStep, confidence int, reasoning, preview string) (*campaign.ApprovalItem, error) {
	if campaign.IsTerminalStepStatus(step.Status) {
		return nil, campaign.ErrInvalidTransition
	}

	now := time.Now().UTC()
	item := &campaign.ApprovalItem{
		ID:               uuid.New().String(),
		ScheduledStepID:  step.ID,
		CampaignID:       step.CampaignID,
		ContactID:        step.ContactID,
		WorkspaceID:      step.WorkspaceID,
		ActionType:       step.Channel,
		PreviewContent:   preview,
		SophiaReasoning:  reasoning,
		SophiaConfidence: confidence,
		Status:           campaign.ApprovalStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&campaign.ApprovalItem{}).
			Where("scheduled_step_id = ? AND status = ?", step.ID, campaign.ApprovalStatusPending).
			Count(&open).Error; err != nil {
			return fmt.Errorf("检查已有审批项失败: %w", err)
		}
		if open > 0 {
			return campaign.ErrDuplicateApproval
		}

		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("创建审批项失败: %w", err)
		}

		result := tx.Model(&campaign.ScheduledStep{}).
			Where("id = ? AND status IN ?", step.ID,
				[]string{campaign.StepStatusPending, campaign.StepStatusInProgress}).
			Updates(map[string]any{
				"status":            campaign.StepStatusRequiresApproval,
				"requires_approval": true,
				"updated_at":        now,
			})
		if result.Error != nil {
			return fmt.Errorf("更新步骤状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return campaign.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	step.Status = campaign.StepStatusRequiresApproval
	step.RequiresApproval = true

	metrics.ApprovalPendingGauge.WithLabelValues(step.WorkspaceID).Inc()
	m.logger.Info("审批项已创建",
		zap.String("approvalId", item.ID),
		zap.String("stepId", step.ID),
		zap.String("channel", step.Channel),
		zap.Int("confidence", confidence),
	)
	return item, nil
}

// Resolve 人工裁决审批项
// approved → 步骤进入 approved（排队等待执行）；rejected → 步骤进入终态 rejected
// 每次裁决都带 resolverID 与时间戳，保证可追溯
func (m *Manager) Resolve(ctx context.Context, workspaceID, approvalID, decision, resolverID, notes string) error {
	if decision != campaign.ApprovalStatusApproved && decision != campaign.ApprovalStatusRejected {
		return fmt.Errorf("不支持的裁决: %s", decision)
	}

	var item campaign.ApprovalItem
	err := m.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ? AND status = ?", approvalID, workspaceID, campaign.ApprovalStatusPending).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return campaign.ErrNotFound
		}
		return fmt.Errorf("加载审批项失败: %w", err)
	}

	now := time.Now().UTC()
	stepStatus := campaign.StepStatusApproved
	if decision == campaign.ApprovalStatusRejected {
		stepStatus = campaign.StepStatusRejected
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&campaign.ApprovalItem{}).
			Where("id = ? AND status = ?", approvalID, campaign.ApprovalStatusPending).
			Updates(map[string]any{
				"status":           decision,
				"resolved_by":      resolverID,
				"resolved_at":      now,
				"resolution_notes": notes,
				"updated_at":       now,
			}).Error; err != nil {
			return fmt.Errorf("更新审批项失败: %w", err)
		}

		stepUpdates := map[string]any{
			"status":     stepStatus,
			"updated_at": now,
		}
		if decision == campaign.ApprovalStatusApproved {
			stepUpdates["approved_by"] = resolverID
			stepUpdates["approved_at"] = now
		}

		result := tx.Model(&campaign.ScheduledStep{}).
			Where("id = ? AND status = ?", item.ScheduledStepID, campaign.StepStatusRequiresApproval).
			Updates(stepUpdates)
		if result.Error != nil {
			return fmt.Errorf("更新步骤状态失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return campaign.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ApprovalPendingGauge.WithLabelValues(item.WorkspaceID).Dec()
	metrics.ApprovalDecisionsTotal.WithLabelValues(item.WorkspaceID, decision).Inc()

	m.logger.Info("审批项已裁决",
		zap.String("approvalId", approvalID),
		zap.String("decision", decision),
		zap.String("resolvedBy", resolverID),
	)

	if m.bus != nil {
		m.bus.Publish(ResolutionEvent{
			ApprovalID:  approvalID,
			StepID:      item.ScheduledStepID,
			CampaignID:  item.CampaignID,
			WorkspaceID: item.WorkspaceID,
			Decision:    decision,
			ResolvedBy:  resolverID,
			OccurredAt:  now,
		})
	}
	return nil
}

// ListPending 分页查询工作区的待审批项
func (m *Manager) ListPending(ctx context.Context, workspaceID string, page, pageSize int) ([]*campaign.ApprovalItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := m.db.WithContext(ctx).Model(&campaign.ApprovalItem{}).
		Where("workspace_id = ? AND status = ?", workspaceID, campaign.ApprovalStatusPending)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计待审批项失败: %w", err)
	}

	var items []*campaign.ApprovalItem
	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询待审批项失败: %w", err)
	}
	return items, total, nil
}
