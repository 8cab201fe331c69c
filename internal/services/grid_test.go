package services

import (
	"testing"
	"time"

	"paycal/internal/core"
)

func TestBuildMonthShape(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     time.Month
		firstCell string
		lastCell  string
	}{
		// March 2024 starts on a Friday; the grid opens the preceding Sunday.
		{"march 2024", 2024, time.March, "2024-02-25", "2024-04-06"},
		// September 2024 starts on a Sunday; the grid opens on the 1st.
		{"september 2024", 2024, time.September, "2024-09-01", "2024-10-12"},
		// February 2026 fits in four rows; the grid still carries six.
		{"february 2026", 2026, time.February, "2026-02-01", "2026-03-14"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matrix := BuildMonth(tt.year, tt.month, nil, core.Date{})
			if len(matrix) != GridWeeks {
				t.Fatalf("grid has %d rows, want %d", len(matrix), GridWeeks)
			}
			for i, row := range matrix {
				if len(row) != 7 {
					t.Fatalf("row %d has %d cells, want 7", i, len(row))
				}
			}
			if got := matrix[0][0].Date.Key(); got != tt.firstCell {
				t.Errorf("first cell = %s, want %s", got, tt.firstCell)
			}
			if got := matrix[GridWeeks-1][6].Date.Key(); got != tt.lastCell {
				t.Errorf("last cell = %s, want %s", got, tt.lastCell)
			}
			if matrix[0][0].Date.Weekday() != time.Sunday {
				t.Errorf("grid does not open on a Sunday")
			}
		})
	}
}

func TestBuildMonthFlags(t *testing.T) {
	events := map[string]*core.DayEvents{
		"2024-03-05": {
			Bills:     []core.AmountItem{{Name: "Water", Amount: core.Money{Cents: 3000}}},
			Paydays:   []core.AmountItem{},
			Purchases: []core.AmountItem{},
			Savings:   []core.AmountItem{},
		},
	}
	today := core.NewDate(2024, time.March, 10)
	matrix := BuildMonth(2024, time.March, events, today)

	var currentDays, todayCells int
	for _, row := range matrix {
		for _, cell := range row {
			if cell.IsCurrentMonth {
				currentDays++
			}
			if cell.IsToday {
				todayCells++
				if cell.Date.Key() != "2024-03-10" {
					t.Errorf("IsToday on %s", cell.Date.Key())
				}
			}
			if cell.Bills == nil || cell.Paydays == nil || cell.Purchases == nil || cell.Savings == nil {
				t.Fatalf("cell %s has nil category slice", cell.Date.Key())
			}
			if cell.Date.Key() == "2024-03-05" && len(cell.Bills) != 1 {
				t.Errorf("events missing from cell 2024-03-05")
			}
			if cell.Date.Key() == "2024-02-25" && cell.IsCurrentMonth {
				t.Error("leading filler day flagged as current month")
			}
		}
	}
	if currentDays != 31 {
		t.Errorf("current-month cells = %d, want 31", currentDays)
	}
	if todayCells != 1 {
		t.Errorf("today cells = %d, want 1", todayCells)
	}
}

func TestBuildMonthZeroTodayMarksNoCell(t *testing.T) {
	matrix := BuildMonth(2024, time.March, nil, core.Date{})
	for _, row := range matrix {
		for _, cell := range row {
			if cell.IsToday {
				t.Fatalf("cell %s flagged as today without a reference date", cell.Date.Key())
			}
		}
	}
}
