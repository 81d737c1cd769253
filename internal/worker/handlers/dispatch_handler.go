package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// StepDispatcher 已批准步骤派发抽象
type StepDispatcher interface {
	DispatchApprovedStep(ctx context.Context, stepID string) error
}

type DispatchHandler struct {
	dispatcher StepDispatcher
	logger     *zap.Logger
}

func NewDispatchHandler(dispatcher StepDispatcher, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (h *DispatchHandler) HandleDispatchStep(ctx context.Context, t *asynq.Task) error {
	var p tasks.DispatchStepPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	if err := h.dispatcher.DispatchApprovedStep(ctx, p.StepID); err != nil {
		h.logger.Error("步骤派发失败",
			zap.String("step_id", p.StepID),
			zap.String("campaign_id", p.CampaignID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
