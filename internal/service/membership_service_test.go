package service

import (
	"context"
	"errors"
	"testing"

	"fanloyalty/internal/model"
	"fanloyalty/internal/repository"
	"fanloyalty/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	f := newFixture(t)
	_, program := testutil.SeedProgram(t, f.db, model.ClubStatusVerified)
	ctx := context.Background()

	joined, err := f.memberships.Join(ctx, &JoinRequest{FanID: 7001, ProgramID: program.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), joined.Balance)

	again, err := f.memberships.Join(ctx, &JoinRequest{FanID: 7001, ProgramID: program.ID})
	require.NoError(t, err)
	assert.Equal(t, joined.ID, again.ID)

	_, err = f.memberships.Join(ctx, &JoinRequest{FanID: 7001, ProgramID: 987654})
	assert.True(t, errors.Is(err, repository.ErrProgramNotFound), "got %v", err)
}

func TestListTransactions(t *testing.T) {
	f := newFixture(t)
	program, member := f.liveMember(t)
	activity := testutil.SeedActivity(t, f.db, program.ID, 10)
	reward := testutil.SeedReward(t, f.db, program.ID, 15)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.complete(t, member, activity)
		require.NoError(t, err)
	}
	redeemed, err := f.redeem(member, reward, "")
	require.NoError(t, err)

	page, total, err := f.memberships.ListTransactions(ctx, member.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 2)
	assert.Equal(t, redeemed.RedemptionNo, page[0].ReferenceNo)
	assert.Equal(t, int64(-15), page[0].Amount)
	assert.Equal(t, int64(15), page[0].BalanceAfter)

	_, _, err = f.memberships.ListTransactions(ctx, 123456, 1, 20)
	assert.True(t, errors.Is(err, repository.ErrMembershipNotFound), "got %v", err)
}

func TestReconcileDetectsDrift(t *testing.T) {
	f := newFixture(t)
	program, member := f.liveMember(t)
	activity := testutil.SeedActivity(t, f.db, program.ID, 10)

	_, err := f.complete(t, member, activity)
	require.NoError(t, err)
	f.requireConsistent(t, member.ID)

	require.NoError(t, f.db.Model(&model.Membership{}).Where("id = ?", member.ID).Update("balance", 500).Error)

	report, err := f.memberships.Reconcile(context.Background(), member.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Equal(t, int64(500), report.Balance)
	assert.Equal(t, int64(10), report.Earned)
	assert.Equal(t, int64(10), report.Journal)
}

func TestLedgerReportConsistent(t *testing.T) {
	tests := []struct {
		name   string
		report LedgerReport
		want   bool
	}{
		{name: "empty", report: LedgerReport{}, want: true},
		{name: "balanced", report: LedgerReport{Balance: 60, LifetimeEarned: 100, Earned: 100, Spent: 40, Journal: 60}, want: true},
		{name: "journal off", report: LedgerReport{Balance: 60, LifetimeEarned: 100, Earned: 100, Spent: 40, Journal: 50}},
		{name: "lifetime off", report: LedgerReport{Balance: 60, LifetimeEarned: 90, Earned: 100, Spent: 40, Journal: 60}},
		{name: "negative", report: LedgerReport{Balance: -10, Earned: 0, Spent: 10, Journal: -10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.report.Consistent())
		})
	}
}
