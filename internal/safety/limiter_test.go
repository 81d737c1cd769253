package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryController_DailyLimit(t *testing.T) {
	ctrl := NewMemoryController(map[string]Limits{
		"email": {Daily: 2, Weekly: 10},
	})
	ctx := context.Background()
	workspace := "ws-1"

	for i := 0; i < 2; i++ {
		decision, err := ctrl.CanPerformAction(ctx, workspace, "email")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
		require.NoError(t, ctrl.RecordAction(ctx, workspace, "email"))
	}

	decision, err := ctrl.CanPerformAction(ctx, workspace, "email")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "每日限额")
	require.Equal(t, 0, decision.RemainingToday)
}

func TestMemoryController_WeeklyLimit(t *testing.T) {
	ctrl := NewMemoryController(map[string]Limits{
		"linkedin_connection": {Daily: 100, Weekly: 1},
	})
	ctx := context.Background()

	require.NoError(t, ctrl.RecordAction(ctx, "ws-1", "linkedin_connection"))

	decision, err := ctrl.CanPerformAction(ctx, "ws-1", "linkedin_connection")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "每周限额")
}

func TestMemoryController_WorkspacesIsolated(t *testing.T) {
	ctrl := NewMemoryController(map[string]Limits{
		"sms": {Daily: 1},
	})
	ctx := context.Background()

	require.NoError(t, ctrl.RecordAction(ctx, "ws-a", "sms"))

	blocked, err := ctrl.CanPerformAction(ctx, "ws-a", "sms")
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	// 另一个工作区的计数独立
	allowed, err := ctrl.CanPerformAction(ctx, "ws-b", "sms")
	require.NoError(t, err)
	require.True(t, allowed.Allowed)
}

func TestMemoryController_UnknownActionUnlimited(t *testing.T) {
	ctrl := NewMemoryController(map[string]Limits{
		"email": {Daily: 1},
	})

	decision, err := ctrl.CanPerformAction(context.Background(), "ws-1", "telegram")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}
