package engine

import (
	"context"
	"testing"
	"time"

	"backend/internal/campaign"

	"github.com/stretchr/testify/require"
)

func TestRunLogger_RecordAggregatesStatuses(t *testing.T) {
	db := setupEngineDB(t)
	c := seedCampaign(t, db, newID(), campaign.AutonomySemi, 80)

	now := time.Now().UTC()
	seedStep(t, db, c, newID(), campaign.ChannelEmail, campaign.StepStatusSent, 1, now)
	seedStep(t, db, c, newID(), campaign.ChannelEmail, campaign.StepStatusFailed, 1, now)
	seedStep(t, db, c, newID(), campaign.ChannelEmail, campaign.StepStatusRequiresApproval, 1, now)
	seedStep(t, db, c, newID(), campaign.ChannelEmail, campaign.StepStatusPending, 1, now)

	started := now.Add(-time.Second)
	log, err := NewRunLogger(db).Record(context.Background(), c.ID, campaign.ExecutionTypePollCycle, started)
	require.NoError(t, err)

	require.Equal(t, 4, log.TotalSteps)
	require.Equal(t, 1, log.CompletedSteps)
	require.Equal(t, 1, log.FailedSteps)
	require.Equal(t, 1, log.PendingApprovalSteps)
	require.Equal(t, c.AutonomyLevel, log.AutonomyLevelUsed)
	require.Equal(t, campaign.ExecutionTypePollCycle, log.ExecutionType)
	require.NotNil(t, log.CompletedAt)

	var stored campaign.ExecutionLog
	require.NoError(t, db.Where("campaign_id = ?", c.ID).First(&stored).Error)
	require.Equal(t, log.ID, stored.ID)
}

func TestRunLogger_UnknownCampaign(t *testing.T) {
	db := setupEngineDB(t)
	_, err := NewRunLogger(db).Record(context.Background(), newID(), campaign.ExecutionTypeManual, time.Now())
	require.ErrorIs(t, err, campaign.ErrNotFound)
}
