package tier

import (
	"testing"

	"fanloyalty/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ladder() []model.Tier {
	// deliberately out of rank order
	return []model.Tier{
		{ID: 3, Rank: 3, Name: "Gold", PointsThreshold: 5000},
		{ID: 1, Rank: 1, Name: "Bronze", PointsThreshold: 0},
		{ID: 2, Rank: 2, Name: "Silver", PointsThreshold: 1000},
	}
}

func TestComputeTier(t *testing.T) {
	tests := []struct {
		lifetime    int64
		wantCurrent string
		wantNext    string
	}{
		{lifetime: 0, wantCurrent: "Bronze", wantNext: "Silver"},
		{lifetime: 999, wantCurrent: "Bronze", wantNext: "Silver"},
		{lifetime: 1000, wantCurrent: "Silver", wantNext: "Gold"},
		{lifetime: 5000, wantCurrent: "Gold"},
		{lifetime: 1 << 40, wantCurrent: "Gold"},
	}

	for _, tt := range tests {
		current, next := ComputeTier(tt.lifetime, ladder())
		require.NotNil(t, current)
		assert.Equal(t, tt.wantCurrent, current.Name, "lifetime %d", tt.lifetime)
		if tt.wantNext == "" {
			assert.Nil(t, next)
		} else {
			require.NotNil(t, next)
			assert.Equal(t, tt.wantNext, next.Name)
		}
	}
}

func TestComputeTierBelowFirstThreshold(t *testing.T) {
	tiers := []model.Tier{{Rank: 1, Name: "Bronze", PointsThreshold: 100}}

	current, next := ComputeTier(50, tiers)
	assert.Nil(t, current)
	require.NotNil(t, next)
	assert.Equal(t, "Bronze", next.Name)
	assert.Equal(t, int64(50), PointsToNext(50, next))

	current, next = ComputeTier(0, nil)
	assert.Nil(t, current)
	assert.Nil(t, next)
}

func TestRankIsMonotonicInLifetime(t *testing.T) {
	tiers := []model.Tier{
		{Rank: 1, PointsThreshold: 0},
		{Rank: 2, PointsThreshold: 300},
		{Rank: 3, PointsThreshold: 200}, // threshold lower than its predecessor
		{Rank: 4, PointsThreshold: 900},
	}

	prev := 0
	for lifetime := int64(0); lifetime <= 1200; lifetime += 7 {
		current, _ := ComputeTier(lifetime, tiers)
		rank := 0
		if current != nil {
			rank = current.Rank
		}
		assert.GreaterOrEqual(t, rank, prev, "lifetime %d", lifetime)
		prev = rank
	}
}

func TestResolveBenefitsLastWins(t *testing.T) {
	benefits := []model.TierBenefit{
		{ID: 4, Type: model.BenefitDiscountPercent, Value: decimal.NewFromInt(15)},
		{ID: 1, Type: model.BenefitPointsMultiplier, Value: decimal.RequireFromString("1.5")},
		{ID: 2, Type: model.BenefitDiscountPercent, Value: decimal.NewFromInt(10)},
		{ID: 3, Type: model.BenefitPointsMultiplier, Value: decimal.RequireFromString("1.2")},
		{ID: 5, Type: model.BenefitVIPAccess, Value: decimal.NewFromInt(1)},
		{ID: 6, Type: model.BenefitMonthlyBonusPoints, Value: decimal.NewFromInt(50)},
	}

	e := ResolveBenefits(benefits)
	assert.True(t, e.Multiplier.Equal(decimal.RequireFromString("1.2")), e.Multiplier.String())
	assert.True(t, e.DiscountPercent.Equal(decimal.NewFromInt(15)), e.DiscountPercent.String())
	assert.True(t, e.VIP)
	assert.Equal(t, int64(50), e.MonthlyBonus)
}

func TestEffectsDefaults(t *testing.T) {
	e := EffectsFor(nil)
	assert.True(t, e.Multiplier.Equal(decimal.NewFromInt(1)))
	assert.True(t, e.DiscountPercent.IsZero())
	assert.False(t, e.VIP)
	assert.Zero(t, e.MonthlyBonus)

	e = ResolveBenefits([]model.TierBenefit{{ID: 1, Type: "unknown", Value: decimal.NewFromInt(9)}})
	assert.Equal(t, DefaultEffects(), e)
}

func TestFinalCost(t *testing.T) {
	tests := []struct {
		cost     int64
		discount string
		want     int64
	}{
		{cost: 500, discount: "20", want: 400},
		{cost: 500, discount: "0", want: 500},
		{cost: 5, discount: "50", want: 3}, // 2.5 rounds half up
		{cost: 333, discount: "12.5", want: 291},
		{cost: 100, discount: "150", want: 0},
		{cost: 100, discount: "-10", want: 100},
	}

	for _, tt := range tests {
		got := FinalCost(tt.cost, decimal.RequireFromString(tt.discount))
		assert.Equal(t, tt.want, got, "cost %d discount %s", tt.cost, tt.discount)
	}
}

func TestApplyMultiplier(t *testing.T) {
	assert.Equal(t, int64(100), ApplyMultiplier(100, decimal.NewFromInt(1)))
	assert.Equal(t, int64(150), ApplyMultiplier(100, decimal.RequireFromString("1.5")))
	assert.Equal(t, int64(16), ApplyMultiplier(13, decimal.RequireFromString("1.2"))) // 15.6
	assert.Equal(t, int64(8), ApplyMultiplier(5, decimal.RequireFromString("1.5")))  // 7.5
	assert.Equal(t, int64(0), ApplyMultiplier(100, decimal.Zero))
}
