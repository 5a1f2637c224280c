package cost

// Tier is a per-tenant pricing plan assigned independent of usage-based
// quota buckets, adapted from the teacher's internal/economics
// PricingTier/TierLimits model down to the fields the gateway actually
// needs: a concurrency cap and an included monthly cost allowance used to
// flag overage for reporting.
type Tier string

const (
	TierStartup    Tier = "startup"
	TierGrowth     Tier = "growth"
	TierEnterprise Tier = "enterprise"
	TierPayAsYouGo Tier = "payg"
)

// TierLimits is the concurrency/cost envelope for one Tier.
type TierLimits struct {
	MaxConcurrentRequests int
	IncludedMonthlyCost   float64 // spend covered before overage accrues
	OveragePerRequest     float64 // flat per-request overage rate once exceeded
}

// TierLimitsFor returns the envelope for a tier, defaulting to pay-as-you-go
// for an unrecognized value.
func TierLimitsFor(tier Tier) TierLimits {
	switch tier {
	case TierStartup:
		return TierLimits{MaxConcurrentRequests: 20, IncludedMonthlyCost: 499, OveragePerRequest: 0.0005}
	case TierGrowth:
		return TierLimits{MaxConcurrentRequests: 200, IncludedMonthlyCost: 2499, OveragePerRequest: 0.0003}
	case TierEnterprise:
		return TierLimits{MaxConcurrentRequests: 0, IncludedMonthlyCost: 0, OveragePerRequest: 0} // unlimited/custom
	case TierPayAsYouGo:
		return TierLimits{MaxConcurrentRequests: 10, IncludedMonthlyCost: 0, OveragePerRequest: 0.001}
	default:
		return TierLimitsFor(TierPayAsYouGo)
	}
}

// Overage reports whether monthlySpend has exceeded the tier's included
// allowance, and how much. Out of scope for billing/reporting per spec §1,
// so callers only populate Entry.Overage for a reporting subsystem that
// isn't otherwise implemented here.
func Overage(tier Tier, monthlySpend float64) (exceeded bool, amount float64) {
	limits := TierLimitsFor(tier)
	if limits.IncludedMonthlyCost <= 0 {
		return false, 0
	}
	if monthlySpend <= limits.IncludedMonthlyCost {
		return false, 0
	}
	return true, monthlySpend - limits.IncludedMonthlyCost
}
