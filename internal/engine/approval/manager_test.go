package approval

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"backend/internal/campaign"
	"backend/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stderr"); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func setupApprovalDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:approval_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	if err := db.AutoMigrate(&campaign.ScheduledStep{}, &campaign.ApprovalItem{}); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}
	return db
}

func seedApprovalStep(t *testing.T, db *gorm.DB, status string) *campaign.ScheduledStep {
	t.Helper()
	step := &campaign.ScheduledStep{
		ID:          uuid.New().String(),
		CampaignID:  uuid.New().String(),
		WorkspaceID: uuid.New().String(),
		ContactID:   uuid.New().String(),
		StepIndex:   1,
		Channel:     campaign.ChannelLinkedInMessage,
		Content:     "let's connect",
		Status:      status,
		ScheduledAt: time.Now().UTC(),
	}
	require.NoError(t, db.Create(step).Error)
	return step
}

func TestManager_CreateApprovalItem(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)
	step := seedApprovalStep(t, db, campaign.StepStatusInProgress)

	item, err := mgr.CreateApprovalItem(context.Background(), step, 72, "低置信度", "let's connect")
	require.NoError(t, err)
	require.Equal(t, step.ID, item.ScheduledStepID)
	require.Equal(t, 72, item.SophiaConfidence)
	require.Equal(t, campaign.ApprovalStatusPending, item.Status)

	// 同一事务内步骤转入 requires_approval
	var stored campaign.ScheduledStep
	require.NoError(t, db.Where("id = ?", step.ID).First(&stored).Error)
	require.Equal(t, campaign.StepStatusRequiresApproval, stored.Status)
	require.True(t, stored.RequiresApproval)
}

func TestManager_CreateApprovalItem_DuplicateGuard(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)
	step := seedApprovalStep(t, db, campaign.StepStatusInProgress)

	_, err := mgr.CreateApprovalItem(context.Background(), step, 72, "", "")
	require.NoError(t, err)

	_, err = mgr.CreateApprovalItem(context.Background(), step, 72, "", "")
	require.ErrorIs(t, err, campaign.ErrDuplicateApproval)

	var count int64
	require.NoError(t, db.Model(&campaign.ApprovalItem{}).
		Where("scheduled_step_id = ?", step.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestManager_CreateApprovalItem_TerminalStepRejected(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)

	for _, status := range []string{campaign.StepStatusSent, campaign.StepStatusFailed, campaign.StepStatusRejected} {
		step := seedApprovalStep(t, db, status)
		_, err := mgr.CreateApprovalItem(context.Background(), step, 50, "", "")
		require.ErrorIs(t, err, campaign.ErrInvalidTransition, "终态 %s 不应可创建审批项", status)
	}
}

func TestManager_Resolve_Approve(t *testing.T) {
	db := setupApprovalDB(t)
	bus := NewResolutionBus(4)
	mgr := NewManager(db, WithResolutionBus(bus))
	step := seedApprovalStep(t, db, campaign.StepStatusInProgress)

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	item, err := mgr.CreateApprovalItem(context.Background(), step, 72, "", "")
	require.NoError(t, err)

	resolver := uuid.New().String()
	require.NoError(t, mgr.Resolve(context.Background(), step.WorkspaceID, item.ID,
		campaign.ApprovalStatusApproved, resolver, "看过内容，可以发"))

	var storedStep campaign.ScheduledStep
	require.NoError(t, db.Where("id = ?", step.ID).First(&storedStep).Error)
	require.Equal(t, campaign.StepStatusApproved, storedStep.Status)
	require.Equal(t, resolver, storedStep.ApprovedBy)
	require.NotNil(t, storedStep.ApprovedAt)

	var storedItem campaign.ApprovalItem
	require.NoError(t, db.Where("id = ?", item.ID).First(&storedItem).Error)
	require.Equal(t, campaign.ApprovalStatusApproved, storedItem.Status)
	require.Equal(t, resolver, storedItem.ResolvedBy)
	require.Equal(t, "看过内容，可以发", storedItem.ResolutionNotes)

	select {
	case evt := <-events:
		require.Equal(t, step.ID, evt.StepID)
		require.Equal(t, campaign.ApprovalStatusApproved, evt.Decision)
	case <-time.After(time.Second):
		t.Fatal("未收到审批事件")
	}
}

func TestManager_Resolve_Reject(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)
	step := seedApprovalStep(t, db, campaign.StepStatusInProgress)

	item, err := mgr.CreateApprovalItem(context.Background(), step, 60, "", "")
	require.NoError(t, err)

	require.NoError(t, mgr.Resolve(context.Background(), step.WorkspaceID, item.ID,
		campaign.ApprovalStatusRejected, uuid.New().String(), "措辞不合适"))

	var storedStep campaign.ScheduledStep
	require.NoError(t, db.Where("id = ?", step.ID).First(&storedStep).Error)
	require.Equal(t, campaign.StepStatusRejected, storedStep.Status)
	// 拒绝不落 approved_by
	require.Empty(t, storedStep.ApprovedBy)
}

func TestManager_Resolve_WorkspaceIsolation(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)
	step := seedApprovalStep(t, db, campaign.StepStatusInProgress)

	item, err := mgr.CreateApprovalItem(context.Background(), step, 60, "", "")
	require.NoError(t, err)

	err = mgr.Resolve(context.Background(), uuid.New().String(), item.ID,
		campaign.ApprovalStatusApproved, uuid.New().String(), "")
	require.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestManager_Resolve_AlreadyResolved(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)
	step := seedApprovalStep(t, db, campaign.StepStatusInProgress)

	item, err := mgr.CreateApprovalItem(context.Background(), step, 60, "", "")
	require.NoError(t, err)

	resolver := uuid.New().String()
	require.NoError(t, mgr.Resolve(context.Background(), step.WorkspaceID, item.ID,
		campaign.ApprovalStatusApproved, resolver, ""))

	// 二次裁决被拒：pending 过滤查不到已关闭的审批项
	err = mgr.Resolve(context.Background(), step.WorkspaceID, item.ID,
		campaign.ApprovalStatusRejected, resolver, "")
	require.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestManager_Resolve_InvalidDecision(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)

	err := mgr.Resolve(context.Background(), uuid.New().String(), uuid.New().String(), "maybe", "", "")
	require.Error(t, err)
}

func TestManager_ListPending(t *testing.T) {
	db := setupApprovalDB(t)
	mgr := NewManager(db)

	step := seedApprovalStep(t, db, campaign.StepStatusInProgress)
	_, err := mgr.CreateApprovalItem(context.Background(), step, 70, "", "")
	require.NoError(t, err)

	// 另一个工作区的审批项不可见
	other := seedApprovalStep(t, db, campaign.StepStatusInProgress)
	_, err = mgr.CreateApprovalItem(context.Background(), other, 70, "", "")
	require.NoError(t, err)

	items, total, err := mgr.ListPending(context.Background(), step.WorkspaceID, 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	require.Equal(t, step.ID, items[0].ScheduledStepID)
}
