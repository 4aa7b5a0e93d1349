package job

import (
	"context"
	"testing"

	"fanloyalty/internal/config"
	"fanloyalty/internal/model"
	"fanloyalty/internal/service"
	"fanloyalty/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerReconcileReportsDrift(t *testing.T) {
	db := testutil.NewDB(t)
	_, program := testutil.SeedProgram(t, db, model.ClubStatusVerified)

	var members []*model.Membership
	for i := 0; i < 5; i++ {
		members = append(members, testutil.Fund(t, db, testutil.SeedMembership(t, db, program.ID), int64(100*(i+1))))
	}
	drifted := members[3]
	require.NoError(t, db.Model(&model.Membership{}).Where("id = ?", drifted.ID).Update("balance", 1).Error)

	cfg := &config.Config{Jobs: config.JobsConfig{ReconcileBatchSize: 2, ReconcileConcurrency: 3}}
	reconciler := NewLedgerReconcileJob(db, cfg, service.NewMembershipService(db), nil)

	summary, err := reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.Checked)
	assert.Equal(t, int64(1), summary.Drifted)
	require.Len(t, summary.Drifts, 1)
	assert.Equal(t, drifted.ID, summary.Drifts[0].MembershipID)
	assert.Equal(t, int64(400), summary.Drifts[0].Earned)

	// reporting never touches the balance
	assert.Equal(t, int64(1), testutil.Reload(t, db, drifted.ID).Balance)
}

func TestLedgerReconcileEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	reconciler := NewLedgerReconcileJob(db, &config.Config{}, service.NewMembershipService(db), nil)

	summary, err := reconciler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Checked)
	assert.Empty(t, summary.Drifts)
}
