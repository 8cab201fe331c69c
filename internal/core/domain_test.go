package core

import (
	"encoding/json"
	"testing"
	"time"
)

func validRule() RecurringRule {
	return RecurringRule{
		ID:        "r1",
		Type:      CategoryBill,
		Name:      "rent",
		Amount:    Money{Cents: 120000},
		StartDate: NewDate(2024, time.January, 31),
		Cadence:   CadenceMonthly,
		Forever:   true,
	}
}

func TestRecurringRuleValidate(t *testing.T) {
	if err := validRule().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RecurringRule)
	}{
		{"empty name", func(r *RecurringRule) { r.Name = "  " }},
		{"bad type", func(r *RecurringRule) { r.Type = "loan" }},
		{"bad cadence", func(r *RecurringRule) { r.Cadence = "daily" }},
		{"zero start", func(r *RecurringRule) { r.StartDate = Date{} }},
		{"zero amount", func(r *RecurringRule) { r.Amount = Money{} }},
		{"no lifetime", func(r *RecurringRule) { r.Forever = false; r.MonthsCount = 0 }},
		{"negative months", func(r *RecurringRule) { r.Forever = false; r.MonthsCount = -2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRule()
			tc.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Errorf("expected error")
			}
		})
	}
}

func TestEffectiveEnd(t *testing.T) {
	r := validRule()
	r.Forever = false
	r.MonthsCount = 1
	r.StartDate = NewDate(2024, time.January, 15)
	end, bounded := r.EffectiveEnd()
	if !bounded {
		t.Fatalf("expected bounded lifetime")
	}
	if end.Key() != "2024-01-31" {
		t.Fatalf("monthsCount=1 end = %s, want 2024-01-31", end.Key())
	}

	r.MonthsCount = 2
	end, _ = r.EffectiveEnd()
	if end.Key() != "2024-02-29" {
		t.Fatalf("monthsCount=2 end = %s, want 2024-02-29", end.Key())
	}

	r.Forever = true
	if _, bounded := r.EffectiveEnd(); bounded {
		t.Fatalf("forever rule should be unbounded")
	}
}

func TestAddException(t *testing.T) {
	r := validRule()
	if !r.AddException("2024-02-29") {
		t.Fatalf("first add should change the set")
	}
	if r.AddException("2024-02-29") {
		t.Fatalf("second add should be a no-op")
	}
	if !r.HasException("2024-02-29") {
		t.Fatalf("exception missing after add")
	}
	if len(r.Exceptions) != 1 {
		t.Fatalf("exceptions = %v, want one entry", r.Exceptions)
	}
}

func TestDayEventsAddAndSum(t *testing.T) {
	e := NewDayEvents()
	if !e.Add(CategoryPayday, AmountItem{Name: "salary", Amount: Money{Cents: 100000}}) {
		t.Fatalf("add payday failed")
	}
	if !e.Add(CategoryBill, AmountItem{Name: "power", Amount: Money{Cents: 4500}}) {
		t.Fatalf("add bill failed")
	}
	if e.Add("loan", AmountItem{Name: "x"}) {
		t.Fatalf("unknown category should be rejected")
	}
	if got := e.Sum(CategoryPayday).Cents; got != 100000 {
		t.Errorf("payday sum = %d", got)
	}
	if e.IsEmpty() {
		t.Errorf("events should not be empty")
	}
}

func TestDayEventsCloneIsIndependent(t *testing.T) {
	src := NewDayEvents()
	src.Add(CategoryBill, AmountItem{Name: "rent", Amount: Money{Cents: 1}})
	dst := src.Clone()
	dst.Add(CategoryBill, AmountItem{Name: "extra", Amount: Money{Cents: 2}})
	if len(src.Bills) != 1 {
		t.Fatalf("clone mutated source: %v", src.Bills)
	}
}

func TestDayEventsJSONEmptyLists(t *testing.T) {
	data, err := json.Marshal(NewDayEvents())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"bills":[],"paydays":[],"purchases":[],"savings":[]}`
	if string(data) != want {
		t.Fatalf("marshal = %s, want %s", data, want)
	}
}
