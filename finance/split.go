package finance

import "bitbucket.org/storyfount/finance_backend/money"

// Split is the three-way cut of one subscriber's month.
// Funded + Unallocated always equals the subscription amount.
type Split struct {
	Funded      money.Cents `json:"funded"`
	Unfunded    money.Cents `json:"unfunded"`
	Unallocated money.Cents `json:"unallocated"`
}

// SplitAllocation cuts a subscriber's outgoing allocations against what
// they actually paid. Pure integer arithmetic; negative inputs are a
// caller contract violation rejected at the boundary, not here.
func SplitAllocation(subscriptionCents, allocatedCents money.Cents) Split {
	return Split{
		Funded:      money.Min(allocatedCents, subscriptionCents),
		Unfunded:    money.Max(0, allocatedCents-subscriptionCents),
		Unallocated: money.Max(0, subscriptionCents-allocatedCents),
	}
}

// NewSubscriberDetail builds the per-subscriber month row from raw charged
// and allocated amounts.
func NewSubscriberDetail(subscriberId string, subscriptionCents, allocatedCents money.Cents) SubscriberDetail {
	s := SplitAllocation(subscriptionCents, allocatedCents)
	return SubscriberDetail{
		SubscriberId:            subscriberId,
		SubscriptionAmountCents: subscriptionCents,
		AllocatedCents:          allocatedCents,
		FundedAllocatedCents:    s.Funded,
		OverspentUnfundedCents:  s.Unfunded,
		UnallocatedCents:        s.Unallocated,
	}
}
