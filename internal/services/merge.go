package services

import "paycal/internal/core"

// Merge combines ad-hoc events with expanded recurring occurrences into
// one per-date map. Dates present in both inputs get ad-hoc items first,
// recurring items second per category; dates present in only one input
// pass through. Neither input map is mutated - every output entry is a
// fresh composite.
func Merge(adhoc, recurring map[string]*core.DayEvents) map[string]*core.DayEvents {
	merged := make(map[string]*core.DayEvents, len(adhoc)+len(recurring))
	for key, events := range adhoc {
		merged[key] = events.Clone()
	}
	for key, events := range recurring {
		current, ok := merged[key]
		if !ok {
			current = core.NewDayEvents()
			merged[key] = current
		}
		current.Bills = append(current.Bills, events.Bills...)
		current.Paydays = append(current.Paydays, events.Paydays...)
		current.Purchases = append(current.Purchases, events.Purchases...)
		current.Savings = append(current.Savings, events.Savings...)
	}
	return merged
}
