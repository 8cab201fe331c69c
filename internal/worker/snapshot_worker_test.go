package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"paycal/internal/amqp"
	"paycal/internal/core"
	"paycal/internal/store"
	"paycal/internal/store/memory"
)

type captureExporter struct {
	snaps []store.BalanceSnapshot
	err   error
}

func (e *captureExporter) ExportSnapshot(_ context.Context, snap store.BalanceSnapshot) error {
	e.snaps = append(e.snaps, snap)
	return e.err
}

func seedScope(t *testing.T, st *memory.Store, scope string) {
	t.Helper()
	ctx := context.Background()

	events := core.NewDayEvents()
	events.Bills = append(events.Bills, core.AmountItem{Name: "Internet", Amount: core.Money{Cents: 5000}})
	if err := st.SaveEvents(ctx, scope, map[string]*core.DayEvents{"2024-03-05": events}); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}

	rules := []core.RecurringRule{{
		ID:        "pay",
		Type:      core.CategoryPayday,
		Name:      "Salary",
		Amount:    core.Money{Cents: 100000},
		StartDate: core.NewDate(2024, time.March, 1),
		Cadence:   core.CadenceBiweekly,
		Forever:   true,
	}}
	if err := st.SaveRules(ctx, scope, rules); err != nil {
		t.Fatalf("SaveRules: %v", err)
	}
}

func fixedNow() time.Time {
	return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func TestRefreshScope(t *testing.T) {
	st := memory.New()
	seedScope(t, st, "alice")
	exporter := &captureExporter{}

	w := NewSnapshotWorker(st, exporter)
	w.now = fixedNow

	if err := w.RefreshScope(context.Background(), "alice"); err != nil {
		t.Fatalf("RefreshScope: %v", err)
	}

	snap, err := st.GetSnapshot(context.Background(), "alice", core.NewDate(2024, time.March, 10))
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	// Payday on 2024-03-01 minus the 2024-03-05 bill.
	if want := int64(95000); snap.Funds.Cents != want {
		t.Errorf("snapshot funds = %d, want %d", snap.Funds.Cents, want)
	}
	if snap.Savings.Cents != 0 {
		t.Errorf("snapshot savings = %d, want 0", snap.Savings.Cents)
	}

	if len(exporter.snaps) != 1 {
		t.Fatalf("exported %d snapshots, want 1", len(exporter.snaps))
	}
	if exporter.snaps[0].Scope != "alice" {
		t.Errorf("exported scope = %s, want alice", exporter.snaps[0].Scope)
	}
}

func TestRefreshScopeExportFailureDoesNotFail(t *testing.T) {
	st := memory.New()
	seedScope(t, st, "alice")
	exporter := &captureExporter{err: errors.New("sheet unavailable")}

	w := NewSnapshotWorker(st, exporter)
	w.now = fixedNow

	if err := w.RefreshScope(context.Background(), "alice"); err != nil {
		t.Fatalf("RefreshScope should swallow export errors, got %v", err)
	}
	if _, err := st.GetSnapshot(context.Background(), "alice", core.NewDate(2024, time.March, 10)); err != nil {
		t.Errorf("snapshot missing after failed export: %v", err)
	}
}

func TestRefreshAll(t *testing.T) {
	st := memory.New()
	seedScope(t, st, "alice")
	seedScope(t, st, "bob")

	w := NewSnapshotWorker(st, nil)
	w.now = fixedNow

	if err := w.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	for _, scope := range []string{"alice", "bob"} {
		if _, err := st.GetSnapshot(context.Background(), scope, core.NewDate(2024, time.March, 10)); err != nil {
			t.Errorf("snapshot missing for %s: %v", scope, err)
		}
	}
}

func TestHandleChangeMessage(t *testing.T) {
	st := memory.New()
	seedScope(t, st, "alice")

	w := NewSnapshotWorker(st, nil)
	w.now = fixedNow

	msg := &amqp.CalendarChangedMessage{Scope: "alice", Date: "2024-03-05", Kind: "day_upserted"}
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleChangeMessage: %v", err)
	}
	if _, err := st.GetSnapshot(context.Background(), "alice", core.NewDate(2024, time.March, 10)); err != nil {
		t.Errorf("snapshot missing after change message: %v", err)
	}
}
