// Package store defines the scoped-repository ports the calendar engine
// reads from and writes to. A scope is an opaque group or user key; the
// engine never interprets it.
package store

import (
	"context"
	"errors"
	"time"

	"paycal/internal/core"
)

type (
	// EventRepository persists ad-hoc day events per scope, keyed by the
	// canonical YYYY-MM-DD form of the date.
	EventRepository interface {
		LoadEvents(ctx context.Context, scope string) (map[string]*core.DayEvents, error)
		SaveEvents(ctx context.Context, scope string, events map[string]*core.DayEvents) error
	}

	// RuleRepository persists recurring rules per scope.
	RuleRepository interface {
		LoadRules(ctx context.Context, scope string) ([]core.RecurringRule, error)
		SaveRules(ctx context.Context, scope string, rules []core.RecurringRule) error
	}

	// Repository is the full storage surface the calendar service needs.
	// Callers are expected to serialize concurrent writers around the
	// read-modify-write cycle; implementations return fully-formed
	// snapshots with no partial states.
	Repository interface {
		EventRepository
		RuleRepository
	}

	// Scoper enumerates scopes that currently hold data. Used by the
	// worker's periodic snapshot refresh.
	Scoper interface {
		Scopes(ctx context.Context) ([]string, error)
	}

	// SnapshotRepository persists precomputed balance snapshots, one per
	// scope and date. Written by the worker, read by the balance endpoint
	// when a caller asks for a cached figure.
	SnapshotRepository interface {
		UpsertSnapshot(ctx context.Context, s BalanceSnapshot) error
		GetSnapshot(ctx context.Context, scope string, date core.Date) (BalanceSnapshot, error)
	}
)

// BalanceSnapshot is a materialized balance projection as of a date.
type BalanceSnapshot struct {
	Scope       string     `json:"scope"`
	Date        core.Date  `json:"date"`
	Funds       core.Money `json:"funds"`
	Savings     core.Money `json:"savings"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// ErrSnapshotNotFound signals that no snapshot exists for a scope and
// date pair.
var ErrSnapshotNotFound = errors.New("balance snapshot not found")
