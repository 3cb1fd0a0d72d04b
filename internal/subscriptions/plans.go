package subscriptions

import "github.com/tallyhq/tallycrm-backend/pkg/enums"

// Unlimited marks a quota with no cap.
const Unlimited = -1

// PlanLimits are the per-month allowances a plan grants.
type PlanLimits struct {
	ContactLimit   int
	AIRequestLimit int
}

var planCatalog = map[enums.SubscriptionPlan]PlanLimits{
	enums.PlanFree:       {ContactLimit: 100, AIRequestLimit: 10},
	enums.PlanBasic:      {ContactLimit: 1000, AIRequestLimit: 100},
	enums.PlanPro:        {ContactLimit: 10000, AIRequestLimit: 500},
	enums.PlanEnterprise: {ContactLimit: Unlimited, AIRequestLimit: Unlimited},
}

// LimitsFor returns the allowances for a plan. Unknown plans fall back to
// the free tier.
func LimitsFor(plan enums.SubscriptionPlan) PlanLimits {
	if limits, ok := planCatalog[plan]; ok {
		return limits
	}
	return planCatalog[enums.PlanFree]
}

// PlanInfo pairs a tier with its allowances.
type PlanInfo struct {
	Plan   enums.SubscriptionPlan
	Limits PlanLimits
}

// Plans lists the tiers in ascending order.
func Plans() []PlanInfo {
	order := []enums.SubscriptionPlan{
		enums.PlanFree,
		enums.PlanBasic,
		enums.PlanPro,
		enums.PlanEnterprise,
	}
	infos := make([]PlanInfo, 0, len(order))
	for _, plan := range order {
		infos = append(infos, PlanInfo{Plan: plan, Limits: planCatalog[plan]})
	}
	return infos
}
