package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 后续步骤在启动时先停泊在远期时间点，由 StepAdvancer 在前置步骤完成后激活
const farFutureHorizon = 87600 * time.Hour // 约 10 年

// ValidationErrors 聚合验证错误，errors.Is(err, ErrValidation) 成立
type ValidationErrors []ValidationError

// Error 实现 error 接口
func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return "工作流定义非法: " + strings.Join(msgs, "; ")
}

// Is 支持 errors.Is 匹配 ErrValidation
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Service 活动管理服务：创建、启动（物化步骤）、暂停、恢复
type Service struct {
	db               *gorm.DB
	generator        ContentGenerator
	logger           *zap.Logger
	defaultThreshold int
}

// ServiceOption 自定义配置
type ServiceOption func(*Service)

// WithDefaultThreshold 设置创建活动时的默认置信度阈值
func WithDefaultThreshold(threshold int) ServiceOption {
	return func(s *Service) {
		if threshold > 0 && threshold <= 100 {
			s.defaultThreshold = threshold
		}
	}
}

// NewService 创建活动服务
func NewService(db *gorm.DB, generator ContentGenerator, opts ...ServiceOption) *Service {
	s := &Service{
		db:               db,
		generator:        generator,
		logger:           logger.Get(),
		defaultThreshold: 80,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	WorkspaceID       string             `json:"workspace_id"`
	Name              string             `json:"name" binding:"required"`
	Description       string             `json:"description"`
	Workflow          WorkflowDefinition `json:"workflow"`
	AutonomyLevel     string             `json:"autonomy_level"`
	ApprovalThreshold int                `json:"approval_threshold"`
	CreatedBy         string             `json:"created_by"`
}

// Create 创建活动（草稿态）
// 工作流定义非法时返回 ValidationErrors，不会产生任何步骤
func (s *Service) Create(ctx context.Context, req *CreateCampaignRequest) (*Campaign, error) {
	if req.AutonomyLevel == "" {
		req.AutonomyLevel = AutonomyManualApproval
	}
	if req.ApprovalThreshold == 0 {
		req.ApprovalThreshold = s.defaultThreshold
	}

	errs := ValidateWorkflow(&req.Workflow)
	errs = append(errs, ValidateAutonomy(req.AutonomyLevel, req.ApprovalThreshold)...)
	if len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	c := &Campaign{
		ID:                uuid.New().String(),
		WorkspaceID:       req.WorkspaceID,
		Name:              req.Name,
		Description:       req.Description,
		Workflow:          req.Workflow,
		AutonomyLevel:     req.AutonomyLevel,
		ApprovalThreshold: req.ApprovalThreshold,
		Status:            CampaignStatusDraft,
		CreatedBy:         req.CreatedBy,
	}

	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("创建活动失败: %w", err)
	}

	s.logger.Info("活动已创建",
		zap.String("campaignId", c.ID),
		zap.String("workspaceId", c.WorkspaceID),
		zap.String("autonomyLevel", c.AutonomyLevel),
	)
	return c, nil
}

// Get 查询活动
func (s *Service) Get(ctx context.Context, workspaceID, campaignID string) (*Campaign, error) {
	var c Campaign
	err := s.db.WithContext(ctx).
		Where("id = ? AND workspace_id = ?", campaignID, workspaceID).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return &c, nil
}

// List 分页查询活动列表
func (s *Service) List(ctx context.Context, workspaceID string, page, pageSize int) ([]*Campaign, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	query := s.db.WithContext(ctx).Model(&Campaign{}).Where("workspace_id = ?", workspaceID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计活动数量失败: %w", err)
	}

	var campaigns []*Campaign
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&campaigns).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询活动列表失败: %w", err)
	}
	return campaigns, total, nil
}

// Launch 启动活动：为每个联系人的每个步骤预先物化 ScheduledStep
// 步骤 1 立即到期，后续步骤停泊在远期，由 StepAdvancer 激活
// contactIDs 为空时使用工作区全部联系人
func (s *Service) Launch(ctx context.Context, workspaceID, campaignID string, contactIDs []string) (int, error) {
	c, err := s.Get(ctx, workspaceID, campaignID)
	if err != nil {
		return 0, err
	}
	if c.Status != CampaignStatusDraft {
		return 0, fmt.Errorf("%w: 当前状态 %s, 只有草稿态活动可以启动", ErrCampaignNotActive, c.Status)
	}

	// 启动前再次验证，防止草稿被直接改坏
	if errs := ValidateWorkflow(&c.Workflow); len(errs) > 0 {
		return 0, ValidationErrors(errs)
	}

	contacts, err := s.loadContacts(ctx, workspaceID, contactIDs)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		return 0, fmt.Errorf("没有可用的联系人")
	}

	now := time.Now().UTC()
	farFuture := now.Add(farFutureHorizon)
	steps := make([]*ScheduledStep, 0, len(contacts)*len(c.Workflow.Steps))

	for _, contact := range contacts {
		for i := range c.Workflow.Steps {
			stepDef := &c.Workflow.Steps[i]

			msg, err := s.generator.GenerateMessage(ctx, contact, stepDef, c.Name)
			if err != nil {
				return 0, fmt.Errorf("生成步骤内容失败 (contact=%s, step=%d): %w", contact.ID, i+1, err)
			}

			scheduledAt := farFuture
			if i == 0 {
				scheduledAt = now
			}

			step := &ScheduledStep{
				ID:          uuid.New().String(),
				CampaignID:  c.ID,
				WorkspaceID: workspaceID,
				ContactID:   contact.ID,
				StepIndex:   i + 1,
				Channel:     stepDef.Channel,
				Subject:     msg.Subject,
				Content:     msg.Content,
				Status:      StepStatusPending,
				ScheduledAt: scheduledAt,
			}
			if err := step.SetSophiaAnnotations(msg.Confidence, msg.Reasoning, nil); err != nil {
				return 0, fmt.Errorf("写入步骤注解失败: %w", err)
			}
			steps = append(steps, step)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(steps, 200).Error; err != nil {
			return fmt.Errorf("物化步骤失败: %w", err)
		}
		return tx.Model(&Campaign{}).
			Where("id = ?", c.ID).
			Updates(map[string]any{
				"status":      CampaignStatusActive,
				"launched_at": now,
				"updated_at":  now,
			}).Error
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("活动已启动",
		zap.String("campaignId", c.ID),
		zap.Int("contacts", len(contacts)),
		zap.Int("steps", len(steps)),
	)
	return len(steps), nil
}

// Pause 暂停活动：后续轮询不再拾取其 pending 步骤，进行中的步骤不强制中断
func (s *Service) Pause(ctx context.Context, workspaceID, campaignID string) error {
	return s.transition(ctx, workspaceID, campaignID, CampaignStatusActive, CampaignStatusPaused)
}

// Resume 恢复活动
func (s *Service) Resume(ctx context.Context, workspaceID, campaignID string) error {
	return s.transition(ctx, workspaceID, campaignID, CampaignStatusPaused, CampaignStatusActive)
}

// transition 条件更新活动状态
func (s *Service) transition(ctx context.Context, workspaceID, campaignID, from, to string) error {
	result := s.db.WithContext(ctx).Model(&Campaign{}).
		Where("id = ? AND workspace_id = ? AND status = ?", campaignID, workspaceID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("更新活动状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: 活动不存在或状态不是 %s", ErrCampaignNotActive, from)
	}
	return nil
}

// ListSteps 查询活动的步骤列表
func (s *Service) ListSteps(ctx context.Context, workspaceID, campaignID string, page, pageSize int) ([]*ScheduledStep, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	query := s.db.WithContext(ctx).Model(&ScheduledStep{}).
		Where("campaign_id = ? AND workspace_id = ?", campaignID, workspaceID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计步骤数量失败: %w", err)
	}

	var steps []*ScheduledStep
	err := query.
		Order("contact_id ASC, step_index ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&steps).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询步骤列表失败: %w", err)
	}
	return steps, total, nil
}

// ListExecutionLogs 查询活动的执行日志
func (s *Service) ListExecutionLogs(ctx context.Context, workspaceID, campaignID string, limit int) ([]*ExecutionLog, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var logs []*ExecutionLog
	err := s.db.WithContext(ctx).
		Where("campaign_id = ? AND workspace_id = ?", campaignID, workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("查询执行日志失败: %w", err)
	}
	return logs, nil
}

// loadContacts 加载启动目标联系人
func (s *Service) loadContacts(ctx context.Context, workspaceID string, contactIDs []string) ([]*Contact, error) {
	query := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if len(contactIDs) > 0 {
		query = query.Where("id IN ?", contactIDs)
	}

	var contacts []*Contact
	if err := query.Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("加载联系人失败: %w", err)
	}
	return contacts, nil
}
