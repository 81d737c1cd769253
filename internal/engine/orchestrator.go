package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"backend/internal/campaign"
	"backend/internal/engine/approval"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/sophia"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Orchestrator 自治活动执行编排器
//
// 轮询驱动：周期性扫描到期的 pending 步骤，而不是为每个步骤挂定时器；
// "+2 天" 的延迟只是一行未来的 scheduled_at，由之后的某轮扫描拾取。
// 多实例部署时依靠条件更新（pending → in_progress）独占认领步骤，
// 避免重复发送。
type Orchestrator struct {
	db        *gorm.DB
	approvals *approval.Manager
	executor  *Executor
	advancer  *Advancer
	runLogger *RunLogger
	rules     *RuleEngine
	logger    *zap.Logger

	pollInterval    time.Duration
	batchSize       int
	staleClaimAfter time.Duration

	// 非空时审批通过的派发走任务队列而不是进程内直接执行
	enqueueDispatch func(stepID, campaignID string) error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// OrchestratorOption 自定义配置
type OrchestratorOption func(*Orchestrator)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithBatchSize 设置单轮最多处理的步骤数
func WithBatchSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithRuleEngine 注入守护规则评估器
func WithRuleEngine(rules *RuleEngine) OrchestratorOption {
	return func(o *Orchestrator) { o.rules = rules }
}

// WithStaleClaimAfter 设置 in_progress 认领的过期时长
// 超过该时长仍未到达终态的认领视为 worker 崩溃遗留，回收为 pending
func WithStaleClaimAfter(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.staleClaimAfter = d
		}
	}
}

// WithDispatchEnqueuer 审批通过后把派发任务投递到队列
// 入队失败时回退为进程内直接派发
func WithDispatchEnqueuer(fn func(stepID, campaignID string) error) OrchestratorOption {
	return func(o *Orchestrator) { o.enqueueDispatch = fn }
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	db *gorm.DB,
	approvals *approval.Manager,
	executor *Executor,
	advancer *Advancer,
	runLogger *RunLogger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		db:           db,
		approvals:    approvals,
		executor:     executor,
		advancer:     advancer,
		runLogger:    runLogger,
		logger:       logger.Get(),
		pollInterval: 30 * time.Second,
		batchSize:    100,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Start 启动后台轮询与审批事件监听
func (o *Orchestrator) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	o.cancel = cancel

	o.wg.Add(1)
	go o.pollLoop(ctx)

	if bus := o.approvals.Bus(); bus != nil {
		events, unsubscribe := bus.Subscribe()
		o.wg.Add(1)
		go o.resolutionLoop(ctx, events, unsubscribe)
	}

	o.logger.Info("执行编排器已启动",
		zap.Duration("pollInterval", o.pollInterval),
		zap.Int("batchSize", o.batchSize),
	)
}

// Stop 优雅停止：取消后台任务并等待进行中的步骤处理完
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.logger.Info("执行编排器已停止")
}

// pollLoop 轮询主循环，挂起点只在两轮之间的 sleep 上
func (o *Orchestrator) pollLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.RunCycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("轮询执行出错", zap.Error(err))
			}
		}
	}
}

// resolutionLoop 监听审批事件，approved 的步骤立即派发
func (o *Orchestrator) resolutionLoop(ctx context.Context, events <-chan approval.ResolutionEvent, unsubscribe func()) {
	defer o.wg.Done()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			o.handleResolution(ctx, evt)
		}
	}
}

// handleResolution 处理一条审批事件
// 配置了队列时交给 asynq worker 派发，否则在本进程直接派发
func (o *Orchestrator) handleResolution(ctx context.Context, evt approval.ResolutionEvent) {
	if evt.Decision != campaign.ApprovalStatusApproved {
		return
	}

	if o.enqueueDispatch != nil {
		err := o.enqueueDispatch(evt.StepID, evt.CampaignID)
		if err == nil {
			return
		}
		o.logger.Warn("派发任务入队失败，回退为进程内派发",
			zap.String("stepId", evt.StepID),
			zap.Error(err),
		)
	}

	if err := o.DispatchApprovedStep(ctx, evt.StepID); err != nil {
		o.logger.Error("派发已批准步骤失败",
			zap.String("stepId", evt.StepID),
			zap.Error(err),
		)
	}
}

// RunCycle 执行一轮完整扫描
// 1) 到期的 pending 步骤：策略裁决后路由到审批队列或直接执行
// 2) approved 步骤兜底扫描（事件丢失或上轮限额拦截的）
// 3) 为处理过的活动写执行日志并收尾已完成的活动
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	cycleStart := time.Now().UTC()
	defer func() {
		metrics.OrchestratorCycleDuration.Observe(time.Since(cycleStart).Seconds())
	}()

	touched := make(map[string]bool) // 本轮处理过步骤的活动

	if err := o.requeueStaleClaims(ctx, cycleStart); err != nil {
		o.logger.Warn("回收过期认领失败", zap.Error(err))
	}

	dueSteps, err := o.loadDueSteps(ctx, campaign.StepStatusPending, cycleStart)
	if err != nil {
		return err
	}
	campaigns := make(map[string]*campaign.Campaign)
	for _, step := range dueSteps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.processPendingStep(ctx, step, campaigns); err != nil {
			// 失败按步骤隔离，不中断本轮其他步骤
			o.logger.Error("处理步骤失败",
				zap.String("stepId", step.ID),
				zap.Error(err),
			)
			continue
		}
		touched[step.CampaignID] = true
	}

	approvedSteps, err := o.loadDueSteps(ctx, campaign.StepStatusApproved, cycleStart)
	if err != nil {
		return err
	}
	for _, step := range approvedSteps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.DispatchApprovedStep(ctx, step.ID); err != nil {
			o.logger.Error("派发已批准步骤失败",
				zap.String("stepId", step.ID),
				zap.Error(err),
			)
			continue
		}
		touched[step.CampaignID] = true
	}

	for campaignID := range touched {
		if _, err := o.runLogger.Record(ctx, campaignID, campaign.ExecutionTypePollCycle, cycleStart); err != nil {
			o.logger.Warn("写执行日志失败", zap.String("campaignId", campaignID), zap.Error(err))
		}
		if err := o.finalizeIfDone(ctx, campaignID); err != nil {
			o.logger.Warn("活动收尾检查失败", zap.String("campaignId", campaignID), zap.Error(err))
		}
	}
	return nil
}

// requeueStaleClaims 回收 worker 崩溃后遗留的 in_progress 认领
// 认领方在完成或失败时总会把状态写成终态/回退，长时间停留在
// in_progress 只能是进程中途消失，回收为 pending 让后续轮次重新裁决
func (o *Orchestrator) requeueStaleClaims(ctx context.Context, now time.Time) error {
	staleAfter := o.staleClaimAfter
	if staleAfter <= 0 {
		staleAfter = 3 * o.pollInterval
	}
	cutoff := now.Add(-staleAfter)

	result := o.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("status = ? AND updated_at < ?", campaign.StepStatusInProgress, cutoff).
		Updates(map[string]any{
			"status":     campaign.StepStatusPending,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		o.logger.Warn("回收过期认领", zap.Int64("count", result.RowsAffected))
	}
	return nil
}

// loadDueSteps 查询激活活动中到期的指定状态步骤
// 暂停中的活动被排除在扫描之外，进行中的步骤不受影响
func (o *Orchestrator) loadDueSteps(ctx context.Context, status string, now time.Time) ([]*campaign.ScheduledStep, error) {
	activeCampaigns := o.db.Model(&campaign.Campaign{}).
		Select("id").
		Where("status = ?", campaign.CampaignStatusActive)

	var steps []*campaign.ScheduledStep
	err := o.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ? AND campaign_id IN (?)", status, now, activeCampaigns).
		Order("scheduled_at ASC").
		Limit(o.batchSize).
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

// processPendingStep 处理一个到期的 pending 步骤
func (o *Orchestrator) processPendingStep(ctx context.Context, step *campaign.ScheduledStep, campaigns map[string]*campaign.Campaign) error {
	if !o.claim(ctx, step.ID, campaign.StepStatusPending) {
		// 其他 worker 已认领
		return nil
	}
	step.Status = campaign.StepStatusInProgress

	c, err := o.campaignFor(ctx, step.CampaignID, campaigns)
	if err != nil {
		// 裁决还没开始，认领退回 pending 让后续轮次重试
		o.revertToPending(ctx, step.ID)
		return err
	}

	confidence, ok := step.SophiaConfidence()
	if !ok {
		confidence = sophia.BaselineConfidence(step.Channel)
	}
	reasoning := step.SophiaReasoning()

	requires := RequiresApproval(step.Channel, confidence, c.AutonomyLevel, c.ApprovalThreshold)
	if !requires && o.rules != nil {
		// 守护规则只收紧策略：可强制审批，不能放行 always-approval 渠道
		if forced, reason := o.rules.ForcesApproval(ctx, step, confidence); forced {
			requires = true
			reasoning = reason
		}
	}

	if requires {
		_, err := o.approvals.CreateApprovalItem(ctx, step, confidence, reasoning, step.Content)
		if errors.Is(err, campaign.ErrDuplicateApproval) {
			return nil
		}
		if err != nil {
			o.revertToPending(ctx, step.ID)
		}
		return err
	}

	return o.executeAndAdvance(ctx, step, confidence, reasoning)
}

// DispatchApprovedStep 认领一个已批准步骤并派发
// 异步任务处理器和审批事件监听共用此入口
func (o *Orchestrator) DispatchApprovedStep(ctx context.Context, stepID string) error {
	if !o.claim(ctx, stepID, campaign.StepStatusApproved) {
		return nil
	}

	var step campaign.ScheduledStep
	if err := o.db.WithContext(ctx).Where("id = ?", stepID).First(&step).Error; err != nil {
		// 认领已落库但步骤读不出来，退回 approved 等待兜底扫描
		if revertErr := o.revertToApproved(ctx, stepID); revertErr != nil {
			o.logger.Error("回退认领失败", zap.String("stepId", stepID), zap.Error(revertErr))
		}
		return err
	}

	confidence, ok := step.SophiaConfidence()
	if !ok {
		confidence = sophia.BaselineConfidence(step.Channel)
	}

	sent, err := o.executor.Execute(ctx, &step)
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		// 人工已批准，限额释放后由下一轮兜底扫描重试
		o.logger.Warn("已批准步骤被限额推迟",
			zap.String("stepId", step.ID),
			zap.String("reason", rateErr.Reason),
			zap.Int("confidence", confidence),
		)
		return o.revertToApproved(ctx, step.ID)
	}
	if err != nil {
		return err
	}
	if sent {
		return o.advancer.Advance(ctx, step.CampaignID, step.ContactID, step.StepIndex)
	}
	return nil
}

// executeAndAdvance 自动路径：直接执行，成功后推进下一步
func (o *Orchestrator) executeAndAdvance(ctx context.Context, step *campaign.ScheduledStep, confidence int, reasoning string) error {
	sent, err := o.executor.Execute(ctx, step)

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		// 限额拦截是路由结果：转入审批队列等待人工处理
		if reasoning == "" {
			reasoning = rateErr.Reason
		} else {
			reasoning = rateErr.Reason + "; " + reasoning
		}
		_, approvalErr := o.approvals.CreateApprovalItem(ctx, step, confidence, reasoning, step.Content)
		if errors.Is(approvalErr, campaign.ErrDuplicateApproval) {
			return nil
		}
		return approvalErr
	}
	if err != nil {
		return err
	}
	if sent {
		return o.advancer.Advance(ctx, step.CampaignID, step.ContactID, step.StepIndex)
	}
	return nil
}

// claim 原子认领：status 条件更新为 in_progress
// RowsAffected == 0 表示已被其他 worker 抢走或状态已变化
func (o *Orchestrator) claim(ctx context.Context, stepID, fromStatus string) bool {
	result := o.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("id = ? AND status = ?", stepID, fromStatus).
		Updates(map[string]any{
			"status":     campaign.StepStatusInProgress,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		o.logger.Error("认领步骤失败", zap.String("stepId", stepID), zap.Error(result.Error))
		return false
	}
	return result.RowsAffected > 0
}

// revertToPending 裁决前出错时把认领退回 pending
func (o *Orchestrator) revertToPending(ctx context.Context, stepID string) {
	err := o.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("id = ? AND status = ?", stepID, campaign.StepStatusInProgress).
		Updates(map[string]any{
			"status":     campaign.StepStatusPending,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		o.logger.Error("回退认领失败", zap.String("stepId", stepID), zap.Error(err))
	}
}

// revertToApproved 限额推迟时把认领回退为 approved
func (o *Orchestrator) revertToApproved(ctx context.Context, stepID string) error {
	return o.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("id = ? AND status = ?", stepID, campaign.StepStatusInProgress).
		Updates(map[string]any{
			"status":     campaign.StepStatusApproved,
			"updated_at": time.Now().UTC(),
		}).Error
}

// campaignFor 带本轮缓存地加载活动配置
func (o *Orchestrator) campaignFor(ctx context.Context, campaignID string, cache map[string]*campaign.Campaign) (*campaign.Campaign, error) {
	if c, ok := cache[campaignID]; ok {
		return c, nil
	}
	var c campaign.Campaign
	if err := o.db.WithContext(ctx).Where("id = ?", campaignID).First(&c).Error; err != nil {
		return nil, err
	}
	cache[campaignID] = &c
	return &c, nil
}

// finalizeIfDone 所有步骤到达终态后把活动标记为 completed
func (o *Orchestrator) finalizeIfDone(ctx context.Context, campaignID string) error {
	var remaining int64
	err := o.db.WithContext(ctx).Model(&campaign.ScheduledStep{}).
		Where("campaign_id = ? AND status NOT IN ?", campaignID,
			[]string{campaign.StepStatusSent, campaign.StepStatusFailed, campaign.StepStatusRejected}).
		Count(&remaining).Error
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	return o.db.WithContext(ctx).Model(&campaign.Campaign{}).
		Where("id = ? AND status = ?", campaignID, campaign.CampaignStatusActive).
		Updates(map[string]any{
			"status":     campaign.CampaignStatusCompleted,
			"updated_at": time.Now().UTC(),
		}).Error
}
