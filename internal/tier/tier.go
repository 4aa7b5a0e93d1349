// Package tier derives tier standing and flat benefit effects from lifetime-earned points.
package tier

import (
	"sort"

	"fanloyalty/internal/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Effects is the flattened result of one tier's benefit rows.
type Effects struct {
	Multiplier      decimal.Decimal `json:"multiplier"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	VIP             bool            `json:"vip"`
	MonthlyBonus    int64           `json:"monthly_bonus"`
}

// DefaultEffects applies when a membership has no tier.
func DefaultEffects() Effects {
	return Effects{
		Multiplier:      decimal.NewFromInt(1),
		DiscountPercent: decimal.Zero,
	}
}

// ComputeTier returns the last tier, in rank order, whose threshold is met,
// and the tier after it. current is nil below the first threshold, next is
// nil at the top.
func ComputeTier(lifetime int64, tiers []model.Tier) (current, next *model.Tier) {
	ladder := make([]model.Tier, len(tiers))
	copy(ladder, tiers)
	sort.SliceStable(ladder, func(i, j int) bool { return ladder[i].Rank < ladder[j].Rank })

	idx := -1
	for i := range ladder {
		if ladder[i].PointsThreshold <= lifetime {
			idx = i
		}
	}
	if idx >= 0 {
		current = &ladder[idx]
	}
	if idx+1 < len(ladder) {
		next = &ladder[idx+1]
	}
	return current, next
}

// ResolveBenefits flattens benefits into Effects. Rows are applied in id
// order and a later row of the same type replaces an earlier one.
func ResolveBenefits(benefits []model.TierBenefit) Effects {
	rows := make([]model.TierBenefit, len(benefits))
	copy(rows, benefits)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	e := DefaultEffects()
	for _, b := range rows {
		switch b.Type {
		case model.BenefitPointsMultiplier:
			e.Multiplier = b.Value
		case model.BenefitDiscountPercent:
			e.DiscountPercent = b.Value
		case model.BenefitVIPAccess:
			e.VIP = b.Value.IsPositive()
		case model.BenefitMonthlyBonusPoints:
			e.MonthlyBonus = b.Value.Round(0).IntPart()
		}
	}
	return e
}

// EffectsFor resolves the effects of current, or the defaults when nil.
func EffectsFor(current *model.Tier) Effects {
	if current == nil {
		return DefaultEffects()
	}
	return ResolveBenefits(current.Benefits)
}

// FinalCost is round_half_up(cost × (1 − discount/100)). The discount is
// clamped to [0, 100].
func FinalCost(cost int64, discountPercent decimal.Decimal) int64 {
	pct := decimal.Max(decimal.Zero, decimal.Min(discountPercent, hundred))
	factor := hundred.Sub(pct).Div(hundred)
	return decimal.NewFromInt(cost).Mul(factor).Round(0).IntPart()
}

// ApplyMultiplier is round_half_up(points × multiplier), never negative.
func ApplyMultiplier(points int64, multiplier decimal.Decimal) int64 {
	if !multiplier.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(points).Mul(multiplier).Round(0).IntPart()
}

// PointsToNext is how far lifetime is from next's threshold; 0 at the top.
func PointsToNext(lifetime int64, next *model.Tier) int64 {
	if next == nil || next.PointsThreshold <= lifetime {
		return 0
	}
	return next.PointsThreshold - lifetime
}
