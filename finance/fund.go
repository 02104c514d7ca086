package finance

import (
	"math/big"
	"sort"

	"bitbucket.org/storyfount/finance_backend/money"
)

// PledgedAllocation is one writer's share of a subscriber's outgoing
// pledges, before funding.
type PledgedAllocation struct {
	WriterId    string
	AmountCents money.Cents
}

// FundedShare is the funded portion of one pledge.
type FundedShare struct {
	WriterId    string
	AmountCents money.Cents
}

// FundPledges scales one subscriber's pledges down to what they actually
// paid. When the pledges fit inside the subscription they are funded in
// full; when the subscriber over-commits, each pledge is funded pro rata
// by the largest-remainder method so the funded shares sum exactly to the
// subscription amount. Deterministic: ties break on writer id.
func FundPledges(subscriptionCents money.Cents, pledges []PledgedAllocation) []FundedShare {
	var totalPledged money.Cents
	for _, p := range pledges {
		totalPledged += p.AmountCents
	}
	if totalPledged == 0 {
		return nil
	}

	budget := money.Min(totalPledged, subscriptionCents)
	if budget <= 0 {
		return nil
	}

	shares := make([]FundedShare, len(pledges))
	if totalPledged <= subscriptionCents {
		for i, p := range pledges {
			shares[i] = FundedShare{WriterId: p.WriterId, AmountCents: p.AmountCents}
		}
		return shares
	}

	type remainder struct {
		index int
		frac  money.Cents // numerator of the dropped fraction, denominator totalPledged
	}
	remainders := make([]remainder, len(pledges))
	var distributed money.Cents
	// The scaled product pledge×budget overflows int64 for very large
	// amounts, so the division runs in big.Int. Quotient ≤ budget and
	// remainder < totalPledged, so both fit back into Cents.
	totalBig := big.NewInt(int64(totalPledged))
	for i, p := range pledges {
		exact := new(big.Int).Mul(big.NewInt(int64(p.AmountCents)), big.NewInt(int64(budget)))
		rem := new(big.Int)
		exact.QuoRem(exact, totalBig, rem)
		base := money.Cents(exact.Int64())
		shares[i] = FundedShare{WriterId: p.WriterId, AmountCents: base}
		remainders[i] = remainder{index: i, frac: money.Cents(rem.Int64())}
		distributed += base
	}

	sort.Slice(remainders, func(a, b int) bool {
		if remainders[a].frac != remainders[b].frac {
			return remainders[a].frac > remainders[b].frac
		}
		return pledges[remainders[a].index].WriterId < pledges[remainders[b].index].WriterId
	})
	for i := 0; distributed < budget && i < len(remainders); i++ {
		shares[remainders[i].index].AmountCents++
		distributed++
	}
	return shares
}
