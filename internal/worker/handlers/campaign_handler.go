package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// CampaignLauncher 活动启动器抽象，便于注入 mock
type CampaignLauncher interface {
	Launch(ctx context.Context, workspaceID, campaignID string, contactIDs []string) (int, error)
}

type CampaignHandler struct {
	launcher CampaignLauncher
	logger   *zap.Logger
}

func NewCampaignHandler(launcher CampaignLauncher, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		launcher: launcher,
		logger:   logger,
	}
}

func (h *CampaignHandler) HandleLaunchCampaign(ctx context.Context, t *asynq.Task) error {
	var p tasks.LaunchCampaignPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("开始执行活动启动任务",
		zap.String("campaign_id", p.CampaignID),
		zap.Int("contacts", len(p.ContactIDs)),
	)

	created, err := h.launcher.Launch(ctx, p.WorkspaceID, p.CampaignID, p.ContactIDs)
	if err != nil {
		h.logger.Error("活动启动失败",
			zap.String("campaign_id", p.CampaignID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("活动启动完成",
		zap.String("campaign_id", p.CampaignID),
		zap.Int("steps_created", created),
	)
	return nil
}
