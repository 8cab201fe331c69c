package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryBill     Category = "bill"
	CategoryPayday   Category = "payday"
	CategoryPurchase Category = "purchase"
	CategorySavings  Category = "savings"
)

const (
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
	CadenceMonthly  Cadence = "monthly"
)

type (
	// Category classifies a financial line item.
	Category string

	// Cadence is the repetition pattern of a recurring rule.
	Cadence string

	// AmountItem is one financial line on a specific date. RecurringID
	// back-references the rule that generated it; ad-hoc items leave it
	// empty.
	AmountItem struct {
		Name        string `json:"name"`
		Amount      Money  `json:"amount"`
		RecurringID string `json:"recurringId,omitempty"`
	}

	// DayEvents holds the four category collections for one calendar date.
	DayEvents struct {
		Bills     []AmountItem `json:"bills"`
		Paydays   []AmountItem `json:"paydays"`
		Purchases []AmountItem `json:"purchases"`
		Savings   []AmountItem `json:"savings"`
	}

	// RecurringRule describes a repeating financial event. Exactly one of
	// Forever or a positive MonthsCount determines its lifetime;
	// MonthsCount is ignored when Forever is set. Exceptions holds date
	// keys whose occurrences are suppressed.
	RecurringRule struct {
		ID          string   `json:"id"`
		Type        Category `json:"type"`
		Name        string   `json:"name"`
		Amount      Money    `json:"amount"`
		StartDate   Date     `json:"startDate"`
		Cadence     Cadence  `json:"cadence"`
		MonthsCount int      `json:"monthsCount,omitempty"`
		Forever     bool     `json:"forever"`
		Exceptions  []string `json:"exceptions"`
	}

	// CalendarDay is one cell of the month grid. Derived, never stored.
	CalendarDay struct {
		Date Date `json:"date"`
		DayEvents
		IsCurrentMonth bool `json:"isCurrentMonth"`
		IsToday        bool `json:"isToday"`
	}

	// MonthMatrix is the full month grid: GridWeeks rows of seven days,
	// columns aligned Sunday through Saturday.
	MonthMatrix [][]CalendarDay
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidCadence  = errors.New("invalid cadence")
	ErrInvalidLifetime = errors.New("rule needs forever or a positive months count")
)

func (c Category) IsValid() bool {
	switch c {
	case CategoryBill, CategoryPayday, CategoryPurchase, CategorySavings:
		return true
	}
	return false
}

// Categories lists the known categories in display order.
func Categories() []Category {
	return []Category{CategoryBill, CategoryPayday, CategoryPurchase, CategorySavings}
}

func (c Cadence) IsValid() bool {
	switch c {
	case CadenceWeekly, CadenceBiweekly, CadenceMonthly:
		return true
	}
	return false
}

// StepDays returns the fixed day interval of the cadence, or 0 for
// monthly, which steps by calendar month rather than a day count.
func (c Cadence) StepDays() int {
	switch c {
	case CadenceWeekly:
		return 7
	case CadenceBiweekly:
		return 14
	}
	return 0
}

// NewDayEvents returns a DayEvents with empty, non-nil category lists so
// the value serializes to [] rather than null.
func NewDayEvents() *DayEvents {
	return &DayEvents{
		Bills:     []AmountItem{},
		Paydays:   []AmountItem{},
		Purchases: []AmountItem{},
		Savings:   []AmountItem{},
	}
}

// Items returns the collection for the given category, or nil if the
// category is unknown.
func (e *DayEvents) Items(c Category) []AmountItem {
	switch c {
	case CategoryBill:
		return e.Bills
	case CategoryPayday:
		return e.Paydays
	case CategoryPurchase:
		return e.Purchases
	case CategorySavings:
		return e.Savings
	}
	return nil
}

// Add appends an item to the given category's collection. It reports
// false for an unknown category and leaves the events untouched.
func (e *DayEvents) Add(c Category, item AmountItem) bool {
	switch c {
	case CategoryBill:
		e.Bills = append(e.Bills, item)
	case CategoryPayday:
		e.Paydays = append(e.Paydays, item)
	case CategoryPurchase:
		e.Purchases = append(e.Purchases, item)
	case CategorySavings:
		e.Savings = append(e.Savings, item)
	default:
		return false
	}
	return true
}

// Sum totals the amounts in one category.
func (e *DayEvents) Sum(c Category) Money {
	var cents int64
	for _, item := range e.Items(c) {
		cents += item.Amount.Cents
	}
	return Money{Cents: cents}
}

// IsEmpty reports whether all four collections are empty.
func (e *DayEvents) IsEmpty() bool {
	return len(e.Bills) == 0 && len(e.Paydays) == 0 &&
		len(e.Purchases) == 0 && len(e.Savings) == 0
}

// Clone returns a deep copy with non-nil collections.
func (e *DayEvents) Clone() *DayEvents {
	out := NewDayEvents()
	out.Bills = append(out.Bills, e.Bills...)
	out.Paydays = append(out.Paydays, e.Paydays...)
	out.Purchases = append(out.Purchases, e.Purchases...)
	out.Savings = append(out.Savings, e.Savings...)
	return out
}

// Validate checks a rule on the write path. Read paths never validate;
// an unreadable stored rule simply expands to nothing.
func (r RecurringRule) Validate() error {
	if len(strings.TrimSpace(r.Name)) == 0 {
		return ErrEmptyName
	}
	if len(r.Name) > 200 {
		return ErrNameTooLong
	}
	if !r.Type.IsValid() {
		return ErrInvalidCategory
	}
	if !r.Cadence.IsValid() {
		return ErrInvalidCadence
	}
	if r.StartDate.IsZero() {
		return ErrInvalidDate
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if !r.HasLifetime() {
		return ErrInvalidLifetime
	}
	return nil
}

// HasLifetime reports whether the rule's effective lifetime is defined.
// Rules without one are treated as already expired and never expand.
func (r RecurringRule) HasLifetime() bool {
	return r.Forever || r.MonthsCount > 0
}

// EffectiveEnd returns the last date the rule can produce an occurrence
// and whether such a bound exists. A MonthsCount of 1 reaches through the
// end of the start month.
func (r RecurringRule) EffectiveEnd() (Date, bool) {
	if r.Forever {
		return Date{}, false
	}
	y, m, _ := r.StartDate.Date()
	// Day zero normalizes to the last day of the preceding month.
	return NewDate(y, m+time.Month(r.MonthsCount), 0), true
}

// HasException reports whether the occurrence on the given date key is
// suppressed.
func (r RecurringRule) HasException(key string) bool {
	for _, e := range r.Exceptions {
		if e == key {
			return true
		}
	}
	return false
}

// AddException suppresses the occurrence on the given date key. Adding an
// already-present key is a no-op; it reports whether the set changed.
func (r *RecurringRule) AddException(key string) bool {
	if r.HasException(key) {
		return false
	}
	r.Exceptions = append(r.Exceptions, key)
	return true
}

// Item builds the AmountItem an occurrence of this rule contributes.
func (r RecurringRule) Item() AmountItem {
	return AmountItem{Name: r.Name, Amount: r.Amount, RecurringID: r.ID}
}
