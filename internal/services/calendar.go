package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paycal/internal/core"
	"paycal/internal/store"
)

// DeleteScope selects how much of a recurring rule a deletion removes.
type DeleteScope string

const (
	// DeleteOne suppresses a single occurrence date, permanently, by
	// recording it in the rule's exception list.
	DeleteOne DeleteScope = "one"
	// DeleteAll removes the rule and with it every past and future
	// occurrence.
	DeleteAll DeleteScope = "all"
)

func (s DeleteScope) IsValid() bool {
	return s == DeleteOne || s == DeleteAll
}

// projectionHorizonDays bounds how far ahead BetweenPaydays expands
// recurring rules while hunting for the next payday. A year comfortably
// covers every supported cadence plus rules that start months out.
const projectionHorizonDays = 366

// ChangePublisher is notified after successful calendar writes. Failures
// are logged, never propagated: the write already happened.
type ChangePublisher interface {
	PublishCalendarChange(ctx context.Context, scope, dateKey, kind string) error
}

// Change kinds carried on the notification bus.
const (
	ChangeDayUpserted    = "day_upserted"
	ChangeRuleCreated    = "rule_created"
	ChangeRuleDeleted    = "rule_deleted"
	ChangeExceptionAdded = "exception_added"
)

// CalendarService wires the expansion, merge, grid and projection engine
// to a scoped repository and exposes the calendar's external operations.
type CalendarService struct {
	repo      store.Repository
	publisher ChangePublisher
}

// NewCalendarService builds a service over the given repository. The
// publisher may be nil, in which case writes go unannounced.
func NewCalendarService(repo store.Repository, publisher ChangePublisher) *CalendarService {
	return &CalendarService{repo: repo, publisher: publisher}
}

// MergedEventsForWindow loads the scope's data and materializes the
// merged event map for [windowStart, windowEnd]. Ad-hoc events outside
// the window are included as loaded; only rule expansion is windowed.
func (s *CalendarService) MergedEventsForWindow(ctx context.Context, scope string, windowStart, windowEnd core.Date) (map[string]*core.DayEvents, error) {
	adhoc, err := s.repo.LoadEvents(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	rules, err := s.repo.LoadRules(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	recurring := ExpandAll(ctx, rules, windowStart, windowEnd)
	return Merge(adhoc, recurring), nil
}

// GetMonth materializes the scope's calendar for one month as a
// GridWeeks x 7 matrix. The today parameter drives the IsToday flag.
func (s *CalendarService) GetMonth(ctx context.Context, scope string, year int, month time.Month, today core.Date) (core.MonthMatrix, error) {
	merged, err := s.MergedEventsForWindow(ctx, scope, core.MonthStart(year, month), core.MonthEnd(year, month))
	if err != nil {
		return nil, err
	}
	return BuildMonth(year, month, merged, today), nil
}

// UpsertDay replaces the ad-hoc events for one date wholesale. Recurring
// occurrences are never part of the stored ad-hoc set, so they survive
// any day edit untouched.
func (s *CalendarService) UpsertDay(ctx context.Context, scope string, date core.Date, events *core.DayEvents) error {
	if date.IsZero() {
		return core.ErrInvalidDate
	}
	stored, err := s.repo.LoadEvents(ctx, scope)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	stored[date.Key()] = events.Clone()
	if err := s.repo.SaveEvents(ctx, scope, stored); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	s.announce(ctx, scope, date.Key(), ChangeDayUpserted)
	return nil
}

// CreateRecurringRule validates and persists a new rule with a fresh id
// and an empty exception set. The draft's ID and Exceptions are ignored.
func (s *CalendarService) CreateRecurringRule(ctx context.Context, scope string, draft core.RecurringRule) (core.RecurringRule, error) {
	draft.ID = uuid.NewString()
	draft.Exceptions = []string{}
	if draft.Forever {
		draft.MonthsCount = 0
	}
	if err := draft.Validate(); err != nil {
		return core.RecurringRule{}, fmt.Errorf("validate rule: %w", err)
	}
	rules, err := s.repo.LoadRules(ctx, scope)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("load rules: %w", err)
	}
	rules = append(rules, draft)
	if err := s.repo.SaveRules(ctx, scope, rules); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save rules: %w", err)
	}
	s.announce(ctx, scope, draft.StartDate.Key(), ChangeRuleCreated)
	return draft, nil
}

// DeleteRecurring removes one occurrence (DeleteOne: the date joins the
// rule's exception list, idempotently) or the whole rule (DeleteAll).
// An unknown rule id is a no-op, matching the write-and-forget behavior
// callers expect from a soft delete.
func (s *CalendarService) DeleteRecurring(ctx context.Context, scope, recurringID string, date core.Date, deleteScope DeleteScope) error {
	if !deleteScope.IsValid() {
		return fmt.Errorf("invalid delete scope %q", deleteScope)
	}
	rules, err := s.repo.LoadRules(ctx, scope)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	idx := -1
	for i := range rules {
		if rules[i].ID == recurringID {
			idx = i
			break
		}
	}
	if idx < 0 {
		slog.DebugContext(ctx, "Delete of unknown recurring rule ignored",
			"scope", scope, "rule_id", recurringID)
		return nil
	}

	kind := ChangeExceptionAdded
	if deleteScope == DeleteAll {
		rules = append(rules[:idx], rules[idx+1:]...)
		kind = ChangeRuleDeleted
	} else if !rules[idx].AddException(date.Key()) {
		// Exception already present; nothing to persist.
		return nil
	}
	if err := s.repo.SaveRules(ctx, scope, rules); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	s.announce(ctx, scope, date.Key(), kind)
	return nil
}

// BalanceForDate projects the scope's funds and savings balances as of
// the given date, starting from the supplied baselines. Every stored
// event and every rule occurrence from rule start through the date
// applies; nothing dated after it does.
func (s *CalendarService) BalanceForDate(ctx context.Context, scope string, asOf core.Date, baseFunds, baseSavings core.Money) (funds, savings core.Money, err error) {
	merged, err := s.MergedEventsForWindow(ctx, scope, core.Date{}, asOf)
	if err != nil {
		return core.Money{}, core.Money{}, err
	}
	funds, savings = BalanceAsOf(merged, asOf, baseFunds, baseSavings)
	return funds, savings, nil
}

// BetweenPaydays forecasts the balance at the next payday after the
// reference date. Current funds follow the first-payday policy of
// CurrentFunds. Returns ErrNoUpcomingPayday when no payday lies within
// the projection horizon.
func (s *CalendarService) BetweenPaydays(ctx context.Context, scope string, reference core.Date, initialFunds core.Money) (Projection, error) {
	merged, err := s.MergedEventsForWindow(ctx, scope, core.Date{}, reference.AddDays(projectionHorizonDays))
	if err != nil {
		return Projection{}, err
	}
	current := CurrentFunds(merged, reference, initialFunds)
	return NextPaydayProjection(merged, reference, current)
}

func (s *CalendarService) announce(ctx context.Context, scope, dateKey, kind string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCalendarChange(ctx, scope, dateKey, kind); err != nil {
		slog.ErrorContext(ctx, "Failed to publish calendar change",
			"scope", scope, "date", dateKey, "kind", kind, "error", err)
	}
}
