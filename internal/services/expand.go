// Package services implements the calendar engine: recurring-rule
// expansion, event merging, month-grid construction and balance
// projection, plus the CalendarService that orchestrates them over a
// store.Repository.
//
// This file implements the Strategy Pattern for occurrence generation.
// Each cadence has its own stepper that encapsulates how occurrence
// dates are produced inside a bounded window.
package services

import (
	"context"
	"log/slog"
	"time"

	"paycal/internal/core"
)

// OccurrenceStepper is the strategy interface for generating the raw
// occurrence dates of a rule within [rangeStart, rangeEnd]. Both bounds
// are inclusive and rangeStart is already clamped to the rule's start.
type OccurrenceStepper interface {
	Occurrences(rule core.RecurringRule, rangeStart, rangeEnd core.Date) []core.Date
}

// fixedStepper generates occurrences every intervalDays days from the
// rule's start date. When the range begins after the rule start it jumps
// straight to the first occurrence at or after the range start with one
// offset computation, so projecting to a far-future date stays O(window).
type fixedStepper struct {
	intervalDays int
}

func (s fixedStepper) Occurrences(rule core.RecurringRule, rangeStart, rangeEnd core.Date) []core.Date {
	first := rule.StartDate
	if first.Before(rangeStart.Time) {
		gap := first.DaysBetween(rangeStart)
		offset := gap
		if rem := gap % s.intervalDays; rem != 0 {
			offset = gap + s.intervalDays - rem
		}
		first = first.AddDays(offset)
	}
	var out []core.Date
	for cursor := first; !cursor.After(rangeEnd.Time); cursor = cursor.AddDays(s.intervalDays) {
		out = append(out, cursor)
	}
	return out
}

// monthlyStepper generates exactly one occurrence per calendar month, on
// the rule's anchor day clamped to the month's length.
type monthlyStepper struct{}

func (monthlyStepper) Occurrences(rule core.RecurringRule, rangeStart, rangeEnd core.Date) []core.Date {
	anchorDay := rule.StartDate.Day()
	startIndex := monthIndex(rangeStart)
	endIndex := monthIndex(rangeEnd)
	var out []core.Date
	for idx := startIndex; idx <= endIndex; idx++ {
		year := idx / 12
		month := time.Month(idx%12 + 1)
		day := core.ClampDay(year, month, anchorDay)
		candidate := core.NewDate(year, month, day)
		if candidate.Before(rangeStart.Time) || candidate.After(rangeEnd.Time) {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func monthIndex(d core.Date) int {
	y, m, _ := d.Date()
	return y*12 + int(m) - 1
}

var cadenceSteppers = map[core.Cadence]OccurrenceStepper{
	core.CadenceWeekly:   fixedStepper{intervalDays: 7},
	core.CadenceBiweekly: fixedStepper{intervalDays: 14},
	core.CadenceMonthly:  monthlyStepper{},
}

// Expand produces every occurrence date of the rule within
// [windowStart, windowEnd], honoring the rule's own lifetime and its
// exception list. A zero windowStart means "from the rule's start".
//
// Rules that cannot expand (missing start date, undefined lifetime,
// unknown cadence) yield an empty result rather than an error, so one
// bad stored rule never takes down a whole calendar read.
func Expand(rule core.RecurringRule, windowStart, windowEnd core.Date) []core.Date {
	if rule.StartDate.IsZero() || !rule.HasLifetime() {
		return nil
	}
	rangeStart := rule.StartDate
	if windowStart.After(rangeStart.Time) {
		rangeStart = windowStart
	}
	rangeEnd := windowEnd
	if effEnd, bounded := rule.EffectiveEnd(); bounded && effEnd.Before(rangeEnd.Time) {
		rangeEnd = effEnd
	}
	if rangeEnd.Before(rangeStart.Time) {
		return nil
	}
	stepper, ok := cadenceSteppers[rule.Cadence]
	if !ok {
		return nil
	}
	raw := stepper.Occurrences(rule, rangeStart, rangeEnd)
	if len(rule.Exceptions) == 0 {
		return raw
	}
	kept := raw[:0]
	for _, d := range raw {
		if rule.HasException(d.Key()) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// ExpandAll expands every rule into a per-date event map. Each surviving
// occurrence contributes one AmountItem tagged with its rule's id, filed
// under the rule's category. Rules with an unrecognized category are
// dropped from the output, but loudly: silent data loss here has bitten
// before, so the drop is logged with the rule's identity.
func ExpandAll(ctx context.Context, rules []core.RecurringRule, windowStart, windowEnd core.Date) map[string]*core.DayEvents {
	out := make(map[string]*core.DayEvents)
	for _, rule := range rules {
		if !rule.Type.IsValid() {
			slog.WarnContext(ctx, "Dropping occurrences of rule with unknown category",
				"rule_id", rule.ID,
				"rule_name", rule.Name,
				"type", string(rule.Type))
			continue
		}
		item := rule.Item()
		for _, d := range Expand(rule, windowStart, windowEnd) {
			key := d.Key()
			entry, ok := out[key]
			if !ok {
				entry = core.NewDayEvents()
				out[key] = entry
			}
			entry.Add(rule.Type, item)
		}
	}
	return out
}
