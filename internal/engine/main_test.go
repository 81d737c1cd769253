package engine

import (
	"fmt"
	"os"
	"testing"
	"time"

	"backend/internal/campaign"
	"backend/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newID() string {
	return uuid.New().String()
}

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stderr"); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// seedCampaign 插入一个两步工作流的激活态活动
func seedCampaign(t *testing.T, db *gorm.DB, workspaceID, autonomyLevel string, threshold int) *campaign.Campaign {
	t.Helper()
	c := &campaign.Campaign{
		ID:          newID(),
		WorkspaceID: workspaceID,
		Name:        "Q3 outbound",
		Workflow: campaign.WorkflowDefinition{
			Steps: []campaign.WorkflowStep{
				{Channel: campaign.ChannelEmail, SubjectTemplate: "hi", ContentTemplate: "hello {{first_name}}"},
				{Channel: campaign.ChannelEmail, SubjectTemplate: "ping", ContentTemplate: "follow up", Delay: 2, DelayUnit: campaign.DelayUnitDays},
			},
		},
		AutonomyLevel:     autonomyLevel,
		ApprovalThreshold: threshold,
		Status:            campaign.CampaignStatusActive,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("插入活动失败: %v", err)
	}
	return c
}

// seedContact 插入联系人
func seedContact(t *testing.T, db *gorm.DB, workspaceID string) *campaign.Contact {
	t.Helper()
	contact := &campaign.Contact{
		ID:          newID(),
		WorkspaceID: workspaceID,
		FirstName:   "Ada",
		Company:     "Initech",
		Email:       "ada@initech.com",
		Phone:       "+15550100",
		LinkedInURL: "https://linkedin.com/in/ada",
	}
	if err := db.Create(contact).Error; err != nil {
		t.Fatalf("插入联系人失败: %v", err)
	}
	return contact
}

// seedStep 插入一个指定状态的步骤
func seedStep(t *testing.T, db *gorm.DB, c *campaign.Campaign, contactID, channel, status string, stepIndex int, scheduledAt time.Time) *campaign.ScheduledStep {
	t.Helper()
	step := &campaign.ScheduledStep{
		ID:          newID(),
		CampaignID:  c.ID,
		WorkspaceID: c.WorkspaceID,
		ContactID:   contactID,
		StepIndex:   stepIndex,
		Channel:     channel,
		Subject:     "hi",
		Content:     "hello Ada",
		Status:      status,
		ScheduledAt: scheduledAt,
	}
	if err := db.Create(step).Error; err != nil {
		t.Fatalf("插入步骤失败: %v", err)
	}
	return step
}

// reloadStep 按 ID 重新读取步骤
func reloadStep(t *testing.T, db *gorm.DB, id string) *campaign.ScheduledStep {
	t.Helper()
	var step campaign.ScheduledStep
	if err := db.Where("id = ?", id).First(&step).Error; err != nil {
		t.Fatalf("读取步骤失败: %v", err)
	}
	return &step
}

// setupEngineDB 创建独立的内存数据库并迁移引擎相关表
func setupEngineDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:engine_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("打开内存数据库失败: %v", err)
	}
	if err := db.AutoMigrate(
		&campaign.Campaign{},
		&campaign.Contact{},
		&campaign.ScheduledStep{},
		&campaign.ApprovalItem{},
		&campaign.ExecutionLog{},
		&GuardRule{},
	); err != nil {
		t.Fatalf("迁移表结构失败: %v", err)
	}
	return db
}
