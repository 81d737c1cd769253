package engine

import (
	"context"
	"fmt"
	"time"

	"backend/internal/campaign"
	"backend/internal/logger"

	"github.com/Knetic/govaluate"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GuardRule 工作区级守护规则
// 表达式命中时强制走人工审批（敏感内容、工作时间窗之类的策略），
// 只能收紧策略，永远不能绕过 always-approval 渠道表
type GuardRule struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	WorkspaceID string `json:"workspaceId" gorm:"type:uuid;not null;index"`
	Name        string `json:"name" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`

	// govaluate 表达式，可用变量:
	// channel, confidence, step_index, hour, content, subject
	Expression string `json:"expression" gorm:"type:text;not null"`

	IsActive  bool      `json:"isActive" gorm:"default:true"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (GuardRule) TableName() string {
	return "guard_rules"
}

// RuleEngine 守护规则评估器
type RuleEngine struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRuleEngine 创建守护规则评估器
func NewRuleEngine(db *gorm.DB) *RuleEngine {
	return &RuleEngine{db: db, logger: logger.Get()}
}

// ForcesApproval 评估工作区的激活规则
// 任一规则命中即强制审批，返回命中的规则名作为原因；
// 表达式解析/求值失败只告警并跳过该条，不影响其余规则
func (e *RuleEngine) ForcesApproval(ctx context.Context, step *campaign.ScheduledStep, confidence int) (bool, string) {
	var rules []*GuardRule
	err := e.db.WithContext(ctx).
		Where("workspace_id = ? AND is_active = ?", step.WorkspaceID, true).
		Find(&rules).Error
	if err != nil {
		e.logger.Warn("加载守护规则失败", zap.String("workspaceId", step.WorkspaceID), zap.Error(err))
		return false, ""
	}

	if len(rules) == 0 {
		return false, ""
	}

	params := map[string]interface{}{
		"channel":    step.Channel,
		"confidence": float64(confidence),
		"step_index": float64(step.StepIndex),
		"hour":       float64(time.Now().UTC().Hour()),
		"content":    step.Content,
		"subject":    step.Subject,
	}

	for _, rule := range rules {
		expr, err := govaluate.NewEvaluableExpression(rule.Expression)
		if err != nil {
			e.logger.Warn("守护规则表达式非法",
				zap.String("ruleId", rule.ID),
				zap.String("expression", rule.Expression),
				zap.Error(err),
			)
			continue
		}

		result, err := expr.Evaluate(params)
		if err != nil {
			e.logger.Warn("守护规则求值失败",
				zap.String("ruleId", rule.ID),
				zap.Error(err),
			)
			continue
		}

		if matched, ok := result.(bool); ok && matched {
			return true, fmt.Sprintf("守护规则命中: %s", rule.Name)
		}
	}
	return false, ""
}

// CreateRule 创建守护规则，入库前先验证表达式能解析
func (e *RuleEngine) CreateRule(ctx context.Context, rule *GuardRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: 规则名称不能为空", campaign.ErrValidation)
	}
	if _, err := govaluate.NewEvaluableExpression(rule.Expression); err != nil {
		return fmt.Errorf("%w: 表达式非法: %v", campaign.ErrValidation, err)
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := e.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("创建守护规则失败: %w", err)
	}
	return nil
}

// ListRules 查询工作区全部守护规则
func (e *RuleEngine) ListRules(ctx context.Context, workspaceID string) ([]*GuardRule, error) {
	var rules []*GuardRule
	err := e.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("查询守护规则失败: %w", err)
	}
	return rules, nil
}

// SetRuleActive 启用或停用守护规则
func (e *RuleEngine) SetRuleActive(ctx context.Context, workspaceID, ruleID string, active bool) error {
	result := e.db.WithContext(ctx).Model(&GuardRule{}).
		Where("id = ? AND workspace_id = ?", ruleID, workspaceID).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("更新守护规则失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

// DeleteRule 删除守护规则
func (e *RuleEngine) DeleteRule(ctx context.Context, workspaceID, ruleID string) error {
	result := e.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", ruleID, workspaceID).
		Delete(&GuardRule{})
	if result.Error != nil {
		return fmt.Errorf("删除守护规则失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
