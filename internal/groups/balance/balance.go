// Package balance computes per-member balances from a group's entries.
// Both backends delegate here so the summary tool reports the same numbers
// regardless of where the entries live.
package balance

import (
	"sort"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

// Compute aggregates paid and owed totals per member. Paid is the sum of a
// member's payer amounts; owed is the share-weighted sum of entry amounts the
// member benefits from. Net is paid minus owed. No currency-subunit rounding
// is applied; callers render the floats as-is.
func Compute(group groups.GroupRef, members []groups.Member, entries []groups.Entry) groups.BalanceSummary {
	type position struct {
		paid float64
		owed float64
	}
	positions := make(map[string]*position, len(members))
	names := make(map[string]string, len(members))
	order := make([]string, 0, len(members))

	for _, m := range members {
		if _, ok := positions[m.ID]; !ok {
			positions[m.ID] = &position{}
			order = append(order, m.ID)
		}
		names[m.ID] = m.Name
	}
	known := len(order)

	at := func(id string) *position {
		p, ok := positions[id]
		if !ok {
			// Entries may reference members removed from the snapshot.
			p = &position{}
			positions[id] = p
			order = append(order, id)
		}
		return p
	}

	var total float64
	for _, entry := range entries {
		total += entry.Amount
		for _, payer := range entry.Payers {
			at(payer.MemberID).paid += payer.Amount
		}
		for _, profiteer := range entry.Profiteers {
			at(profiteer.MemberID).owed += profiteer.Share * entry.Amount
		}
	}

	// Members keep snapshot order; stragglers from stale entries sort by id.
	if extra := order[known:]; len(extra) > 1 {
		sort.Strings(extra)
	}

	summary := groups.BalanceSummary{
		CurrencyCode: group.CurrencyCode,
		TotalSpent:   total,
		Members:      make([]groups.MemberBalance, 0, len(order)),
	}
	for _, id := range order {
		p := positions[id]
		summary.Members = append(summary.Members, groups.MemberBalance{
			MemberID: id,
			Name:     names[id],
			Paid:     p.paid,
			Owed:     p.owed,
			Net:      p.paid - p.owed,
		})
	}
	return summary
}
