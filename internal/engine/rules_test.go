package engine

import (
	"context"
	"testing"

	"backend/internal/campaign"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedRule(t *testing.T, db *gorm.DB, workspaceID, name, expression string, active bool) *GuardRule {
	t.Helper()
	rule := &GuardRule{
		ID:          newID(),
		WorkspaceID: workspaceID,
		Name:        name,
		Expression:  expression,
		IsActive:    active,
	}
	require.NoError(t, db.Create(rule).Error)
	return rule
}

func TestRuleEngine_ForcesApproval(t *testing.T) {
	db := setupEngineDB(t)
	engine := NewRuleEngine(db)
	workspaceID := newID()

	seedRule(t, db, workspaceID, "low-confidence-email", "channel == 'email' && confidence < 95", true)

	step := &campaign.ScheduledStep{
		ID:          newID(),
		WorkspaceID: workspaceID,
		Channel:     campaign.ChannelEmail,
		StepIndex:   1,
	}

	forced, reason := engine.ForcesApproval(context.Background(), step, 90)
	require.True(t, forced)
	require.Contains(t, reason, "low-confidence-email")

	forced, _ = engine.ForcesApproval(context.Background(), step, 98)
	require.False(t, forced)
}

func TestRuleEngine_InactiveRuleIgnored(t *testing.T) {
	db := setupEngineDB(t)
	engine := NewRuleEngine(db)
	workspaceID := newID()

	seedRule(t, db, workspaceID, "disabled", "confidence < 100", false)

	step := &campaign.ScheduledStep{ID: newID(), WorkspaceID: workspaceID, Channel: campaign.ChannelEmail}
	forced, _ := engine.ForcesApproval(context.Background(), step, 10)
	require.False(t, forced)
}

func TestRuleEngine_BrokenExpressionSkipped(t *testing.T) {
	db := setupEngineDB(t)
	engine := NewRuleEngine(db)
	workspaceID := newID()

	seedRule(t, db, workspaceID, "broken", "confidence <<< 1", true)
	seedRule(t, db, workspaceID, "valid", "step_index == 1", true)

	step := &campaign.ScheduledStep{ID: newID(), WorkspaceID: workspaceID, Channel: campaign.ChannelEmail, StepIndex: 1}
	forced, reason := engine.ForcesApproval(context.Background(), step, 90)
	require.True(t, forced)
	require.Contains(t, reason, "valid")
}

func TestRuleEngine_CreateRuleValidatesExpression(t *testing.T) {
	db := setupEngineDB(t)
	engine := NewRuleEngine(db)

	err := engine.CreateRule(context.Background(), &GuardRule{
		WorkspaceID: newID(),
		Name:        "bad",
		Expression:  "confidence <<< 1",
	})
	require.ErrorIs(t, err, campaign.ErrValidation)

	err = engine.CreateRule(context.Background(), &GuardRule{
		WorkspaceID: newID(),
		Expression:  "confidence < 50",
	})
	require.ErrorIs(t, err, campaign.ErrValidation)
}

func TestRuleEngine_SetActiveAndDelete(t *testing.T) {
	db := setupEngineDB(t)
	engine := NewRuleEngine(db)
	workspaceID := newID()

	rule := &GuardRule{WorkspaceID: workspaceID, Name: "night hours", Expression: "hour < 8 || hour > 20"}
	require.NoError(t, engine.CreateRule(context.Background(), rule))
	require.NotEmpty(t, rule.ID)

	require.NoError(t, engine.SetRuleActive(context.Background(), workspaceID, rule.ID, false))

	rules, err := engine.ListRules(context.Background(), workspaceID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.False(t, rules[0].IsActive)

	// 别的工作区无法操作
	require.ErrorIs(t, engine.SetRuleActive(context.Background(), newID(), rule.ID, true), campaign.ErrNotFound)
	require.ErrorIs(t, engine.DeleteRule(context.Background(), newID(), rule.ID), campaign.ErrNotFound)

	require.NoError(t, engine.DeleteRule(context.Background(), workspaceID, rule.ID))
	rules, err = engine.ListRules(context.Background(), workspaceID)
	require.NoError(t, err)
	require.Empty(t, rules)
}
