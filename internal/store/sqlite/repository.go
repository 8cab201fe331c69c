// Package sqlite provides the durable store.Repository backed by a
// local SQLite database. Schema management runs through golang-migrate
// with embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"paycal/internal/core"
	"paycal/internal/store"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadEvents reads the scope's ad-hoc events into a per-date map. Rows
// that no longer parse (an unknown category, typically left behind by a
// schema change) are skipped with a warning rather than failing the
// whole read.
func (r *Repository) LoadEvents(ctx context.Context, scope string) (map[string]*core.DayEvents, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, category, name, amount_cents, recurring_id
		FROM day_events
		WHERE scope = ?
		ORDER BY date, category, position`, scope)
	if err != nil {
		return nil, fmt.Errorf("query day events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*core.DayEvents)
	for rows.Next() {
		var (
			date, category, name, recurringID string
			amountCents                       int64
		)
		if err := rows.Scan(&date, &category, &name, &amountCents, &recurringID); err != nil {
			return nil, fmt.Errorf("scan day event: %w", err)
		}
		entry, ok := out[date]
		if !ok {
			entry = core.NewDayEvents()
			out[date] = entry
		}
		item := core.AmountItem{Name: name, Amount: core.Money{Cents: amountCents}, RecurringID: recurringID}
		if !entry.Add(core.Category(category), item) {
			slog.WarnContext(ctx, "Skipping day event with unknown category",
				"scope", scope, "date", date, "category", category)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day events: %w", err)
	}
	return out, nil
}

// SaveEvents replaces the scope's ad-hoc events wholesale in one
// transaction. Empty days are not stored.
func (r *Repository) SaveEvents(ctx context.Context, scope string, events map[string]*core.DayEvents) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM day_events WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("clear day events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO day_events (scope, date, category, position, name, amount_cents, recurring_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for date, day := range events {
		if day == nil || day.IsEmpty() {
			continue
		}
		for _, category := range core.Categories() {
			for pos, item := range day.Items(category) {
				if _, err := stmt.ExecContext(ctx, scope, date, string(category), pos,
					item.Name, item.Amount.Cents, item.RecurringID); err != nil {
					return fmt.Errorf("insert day event: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit day events: %w", err)
	}
	return nil
}

// LoadRules reads the scope's recurring rules. Rules whose stored form
// no longer parses are skipped with a warning; one corrupt row must not
// hide the rest of the calendar.
func (r *Repository) LoadRules(ctx context.Context, scope string) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, category, name, amount_cents, start_date, cadence, months_count, forever, exceptions
		FROM recurring_rules
		WHERE scope = ?
		ORDER BY start_date, id`, scope)
	if err != nil {
		return nil, fmt.Errorf("query recurring rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		var (
			id, category, name, startDate, cadence, exceptionsJSON string
			amountCents, monthsCount                               int64
			forever                                                bool
		)
		if err := rows.Scan(&id, &category, &name, &amountCents, &startDate, &cadence,
			&monthsCount, &forever, &exceptionsJSON); err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}

		start, err := core.ParseDate(startDate)
		if err != nil {
			slog.WarnContext(ctx, "Skipping recurring rule with invalid start date",
				"scope", scope, "rule_id", id, "start_date", startDate)
			continue
		}
		exceptions := []string{}
		if err := json.Unmarshal([]byte(exceptionsJSON), &exceptions); err != nil {
			slog.WarnContext(ctx, "Skipping recurring rule with invalid exceptions",
				"scope", scope, "rule_id", id, "error", err)
			continue
		}

		out = append(out, core.RecurringRule{
			ID:          id,
			Type:        core.Category(category),
			Name:        name,
			Amount:      core.Money{Cents: amountCents},
			StartDate:   start,
			Cadence:     core.Cadence(cadence),
			MonthsCount: int(monthsCount),
			Forever:     forever,
			Exceptions:  exceptions,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring rules: %w", err)
	}
	return out, nil
}

// SaveRules replaces the scope's recurring rules wholesale in one
// transaction.
func (r *Repository) SaveRules(ctx context.Context, scope string, rules []core.RecurringRule) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recurring_rules WHERE scope = ?`, scope); err != nil {
		return fmt.Errorf("clear recurring rules: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recurring_rules (id, scope, category, name, amount_cents, start_date, cadence, months_count, forever, exceptions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rule := range rules {
		exceptions := rule.Exceptions
		if exceptions == nil {
			exceptions = []string{}
		}
		exceptionsJSON, err := json.Marshal(exceptions)
		if err != nil {
			return fmt.Errorf("marshal exceptions for rule %s: %w", rule.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rule.ID, scope, string(rule.Type), rule.Name,
			rule.Amount.Cents, rule.StartDate.Key(), string(rule.Cadence),
			rule.MonthsCount, rule.Forever, string(exceptionsJSON)); err != nil {
			return fmt.Errorf("insert recurring rule %s: %w", rule.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recurring rules: %w", err)
	}
	return nil
}

// Scopes lists every scope that holds events or rules.
func (r *Repository) Scopes(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT scope FROM day_events
		UNION
		SELECT scope FROM recurring_rules
		ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		out = append(out, scope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return out, nil
}

// UpsertSnapshot writes a balance snapshot, replacing any previous one
// for the same scope and date.
func (r *Repository) UpsertSnapshot(ctx context.Context, s store.BalanceSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO balance_snapshots (scope, snapshot_date, funds_cents, savings_cents, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (scope, snapshot_date) DO UPDATE SET
			funds_cents = excluded.funds_cents,
			savings_cents = excluded.savings_cents,
			generated_at = excluded.generated_at`,
		s.Scope, s.Date.Key(), s.Funds.Cents, s.Savings.Cents,
		s.GeneratedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert balance snapshot: %w", err)
	}
	return nil
}

// GetSnapshot reads the snapshot for a scope and date. Returns
// store.ErrSnapshotNotFound when none exists.
func (r *Repository) GetSnapshot(ctx context.Context, scope string, date core.Date) (store.BalanceSnapshot, error) {
	var (
		fundsCents, savingsCents int64
		generatedAt              string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT funds_cents, savings_cents, generated_at
		FROM balance_snapshots
		WHERE scope = ? AND snapshot_date = ?`, scope, date.Key()).
		Scan(&fundsCents, &savingsCents, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.BalanceSnapshot{}, store.ErrSnapshotNotFound
	}
	if err != nil {
		return store.BalanceSnapshot{}, fmt.Errorf("query balance snapshot: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, generatedAt)
	if err != nil {
		return store.BalanceSnapshot{}, fmt.Errorf("parse snapshot timestamp: %w", err)
	}
	return store.BalanceSnapshot{
		Scope:       scope,
		Date:        date,
		Funds:       core.Money{Cents: fundsCents},
		Savings:     core.Money{Cents: savingsCents},
		GeneratedAt: ts,
	}, nil
}
