package services

import (
	"errors"
	"sort"

	"paycal/internal/core"
)

// ErrNoUpcomingPayday signals that a between-paydays projection has no
// next payday to anchor on. Distinct from a projected balance of zero.
var ErrNoUpcomingPayday = errors.New("no upcoming payday")

// Projection is the forecasted balance at the next payday given the
// obligations between a reference date and that payday.
type Projection struct {
	NextPaydayDate     core.Date  `json:"nextPaydayDate"`
	NextPaydayAmount   core.Money `json:"nextPaydayAmount"`
	BillsUntilNext     core.Money `json:"billsUntilNext"`
	PurchasesUntilNext core.Money `json:"purchasesUntilNext"`
	SavingsUntilNext   core.Money `json:"savingsUntilNext"`
	ProjectedBalance   core.Money `json:"projectedBalance"`
}

// MonthTotals aggregates one month's events and the funds left over.
type MonthTotals struct {
	Bills                   core.Money `json:"bills"`
	Paydays                 core.Money `json:"paydays"`
	Purchases               core.Money `json:"purchases"`
	Savings                 core.Money `json:"savings"`
	LeftoverBeforePurchases core.Money `json:"leftoverBeforePurchases"`
	EndOfMonthFunds         core.Money `json:"endOfMonthFunds"`
}

// sortedDates returns the map's date keys parsed and chronologically
// sorted. Keys that do not parse as calendar dates are skipped; a stray
// bad row must not poison a whole projection.
func sortedDates(events map[string]*core.DayEvents) []core.Date {
	dates := make([]core.Date, 0, len(events))
	for key := range events {
		d, err := core.ParseDate(key)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j].Time) })
	return dates
}

// BalanceAsOf folds every event dated on or before asOf into running
// funds and savings balances. There is no lower bound: all historical
// events apply. Paydays add to funds; bills, purchases and savings moves
// subtract; savings moves additionally accumulate into the savings
// balance. The walk is date-ordered for determinism, though plain
// summation makes the result order-independent.
func BalanceAsOf(events map[string]*core.DayEvents, asOf core.Date, baseFunds, baseSavings core.Money) (funds, savings core.Money) {
	funds = baseFunds
	savings = baseSavings
	for _, d := range sortedDates(events) {
		if d.After(asOf.Time) {
			continue
		}
		day := events[d.Key()]
		paydays := day.Sum(core.CategoryPayday).Cents
		bills := day.Sum(core.CategoryBill).Cents
		purchases := day.Sum(core.CategoryPurchase).Cents
		moves := day.Sum(core.CategorySavings).Cents
		funds.Cents += paydays - bills - purchases - moves
		savings.Cents += moves
	}
	return funds, savings
}

// NextPaydayProjection locates the earliest payday strictly after the
// reference date and forecasts the balance on it: current funds, minus
// every bill, purchase and savings move strictly between the reference
// and that payday (both exclusive), plus the payday itself. Returns
// ErrNoUpcomingPayday when the events hold no payday after the
// reference.
func NextPaydayProjection(events map[string]*core.DayEvents, reference core.Date, currentFunds core.Money) (Projection, error) {
	dates := sortedDates(events)

	var nextPayday core.Date
	var nextAmount core.Money
	found := false
	for _, d := range dates {
		if !d.After(reference.Time) {
			continue
		}
		day := events[d.Key()]
		if len(day.Paydays) == 0 {
			continue
		}
		nextPayday = d
		nextAmount = day.Sum(core.CategoryPayday)
		found = true
		break
	}
	if !found {
		return Projection{}, ErrNoUpcomingPayday
	}

	p := Projection{NextPaydayDate: nextPayday, NextPaydayAmount: nextAmount}
	for _, d := range dates {
		if !d.After(reference.Time) || !d.Before(nextPayday.Time) {
			continue
		}
		day := events[d.Key()]
		p.BillsUntilNext.Cents += day.Sum(core.CategoryBill).Cents
		p.PurchasesUntilNext.Cents += day.Sum(core.CategoryPurchase).Cents
		p.SavingsUntilNext.Cents += day.Sum(core.CategorySavings).Cents
	}
	p.ProjectedBalance.Cents = currentFunds.Cents -
		p.BillsUntilNext.Cents -
		p.PurchasesUntilNext.Cents -
		p.SavingsUntilNext.Cents +
		p.NextPaydayAmount.Cents
	return p, nil
}

// CurrentFunds computes spendable funds at the reference date. Funds
// count from the first-ever payday in the events: before it the balance
// is defined as zero (not the configured initial funds - money that has
// never arrived cannot be spent), and with no payday at all the initial
// funds stand unchanged.
func CurrentFunds(events map[string]*core.DayEvents, reference core.Date, initialFunds core.Money) core.Money {
	dates := sortedDates(events)

	var firstPayday core.Date
	found := false
	for _, d := range dates {
		if len(events[d.Key()].Paydays) > 0 {
			firstPayday = d
			found = true
			break
		}
	}
	if !found {
		return initialFunds
	}
	if reference.Before(firstPayday.Time) {
		return core.Money{}
	}

	var funds core.Money
	for _, d := range dates {
		if d.Before(firstPayday.Time) || d.After(reference.Time) {
			continue
		}
		day := events[d.Key()]
		funds.Cents += day.Sum(core.CategoryPayday).Cents -
			day.Sum(core.CategoryBill).Cents -
			day.Sum(core.CategoryPurchase).Cents -
			day.Sum(core.CategorySavings).Cents
	}
	return funds
}

// MonthAnalytics totals the current-month cells of a built grid.
func MonthAnalytics(matrix core.MonthMatrix, initialFunds core.Money) MonthTotals {
	var t MonthTotals
	for _, row := range matrix {
		for _, cell := range row {
			if !cell.IsCurrentMonth {
				continue
			}
			t.Bills.Cents += cell.Sum(core.CategoryBill).Cents
			t.Paydays.Cents += cell.Sum(core.CategoryPayday).Cents
			t.Purchases.Cents += cell.Sum(core.CategoryPurchase).Cents
			t.Savings.Cents += cell.Sum(core.CategorySavings).Cents
		}
	}
	t.LeftoverBeforePurchases.Cents = initialFunds.Cents + t.Paydays.Cents - t.Bills.Cents
	t.EndOfMonthFunds.Cents = t.LeftoverBeforePurchases.Cents - t.Purchases.Cents - t.Savings.Cents
	return t
}
