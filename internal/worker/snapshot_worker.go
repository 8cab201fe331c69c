// Package worker maintains materialized balance snapshots. It reacts to
// calendar change messages from AMQP and additionally refreshes every
// known scope on a timer, so snapshots heal even if a message is lost.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"paycal/internal/amqp"
	"paycal/internal/core"
	"paycal/internal/services"
	"paycal/internal/store"
)

// Store is the storage surface the worker needs: calendar data to
// project from, snapshots to write, scopes to enumerate.
type Store interface {
	store.Repository
	store.SnapshotRepository
	store.Scoper
}

// SnapshotExporter ships a snapshot to an external sink. Optional.
type SnapshotExporter interface {
	ExportSnapshot(ctx context.Context, snap store.BalanceSnapshot) error
}

// Consumer delivers calendar change messages. Satisfied by amqp.Client.
type Consumer interface {
	ConsumeCalendarChanges(ctx context.Context, handler func(*amqp.CalendarChangedMessage) error) error
}

const maxConcurrentRefreshes = 4

type SnapshotWorker struct {
	store    Store
	exporter SnapshotExporter

	// now is swappable for tests.
	now func() time.Time
}

func NewSnapshotWorker(st Store, exporter SnapshotExporter) *SnapshotWorker {
	return &SnapshotWorker{
		store:    st,
		exporter: exporter,
		now:      time.Now,
	}
}

// HandleChangeMessage refreshes the snapshot of the scope a change
// message names.
func (w *SnapshotWorker) HandleChangeMessage(ctx context.Context, msg *amqp.CalendarChangedMessage) error {
	slog.InfoContext(ctx, "Processing calendar change",
		"scope", msg.Scope,
		"date", msg.Date,
		"kind", msg.Kind)
	return w.RefreshScope(ctx, msg.Scope)
}

// RefreshScope recomputes the scope's balance as of today and stores it
// as a snapshot, exporting it when an exporter is configured.
func (w *SnapshotWorker) RefreshScope(ctx context.Context, scope string) error {
	now := w.now()
	today := core.NewDate(now.Year(), now.Month(), now.Day())

	adhoc, err := w.store.LoadEvents(ctx, scope)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	rules, err := w.store.LoadRules(ctx, scope)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	merged := services.Merge(adhoc, services.ExpandAll(ctx, rules, core.Date{}, today))
	funds, savings := services.BalanceAsOf(merged, today, core.Money{}, core.Money{})

	snap := store.BalanceSnapshot{
		Scope:       scope,
		Date:        today,
		Funds:       funds,
		Savings:     savings,
		GeneratedAt: now,
	}
	if err := w.store.UpsertSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Refreshed balance snapshot",
		"scope", scope,
		"date", today.Key(),
		"funds_cents", funds.Cents,
		"savings_cents", savings.Cents)

	if w.exporter != nil {
		// Export failures do not fail the refresh; the snapshot is the
		// source of truth, the sheet is a convenience copy.
		if err := w.exporter.ExportSnapshot(ctx, snap); err != nil {
			slog.ErrorContext(ctx, "Failed to export snapshot",
				"scope", scope, "error", err)
		}
	}
	return nil
}

// RefreshAll refreshes every known scope with bounded concurrency. One
// failing scope does not stop the others; the first error is returned
// after all refreshes finish.
func (w *SnapshotWorker) RefreshAll(ctx context.Context) error {
	scopes, err := w.store.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("list scopes: %w", err)
	}

	g := &errgroup.Group{}
	g.SetLimit(maxConcurrentRefreshes)
	for _, scope := range scopes {
		g.Go(func() error {
			if err := w.RefreshScope(ctx, scope); err != nil {
				slog.ErrorContext(ctx, "Scope refresh failed", "scope", scope, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Run consumes change messages and refreshes all scopes on a timer
// until the context ends. The consumer may be nil, leaving only the
// periodic refresh.
func (w *SnapshotWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			return consumer.ConsumeCalendarChanges(ctx, func(msg *amqp.CalendarChangedMessage) error {
				return w.HandleChangeMessage(ctx, msg)
			})
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.RefreshAll(ctx); err != nil {
					slog.ErrorContext(ctx, "Periodic refresh finished with errors", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
