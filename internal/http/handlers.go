package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"paycal/internal/core"
	"paycal/internal/services"
	"paycal/internal/store"
)

type calendarResponse struct {
	Year   int                  `json:"year"`
	Month  int                  `json:"month"`
	Matrix core.MonthMatrix     `json:"matrix"`
	Totals services.MonthTotals `json:"totals"`
}

func (s *Server) scopeVersion(scope string) uint64 {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	return s.scopeVersions[scope]
}

func (s *Server) bumpScopeVersion(scope string) {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	s.scopeVersions[scope]++
}

func (s *Server) handleGetCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := s.now()
	year, month, err := parseYearMonth(r, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	scope := scopeFrom(r.URL.Query().Get("scope"), s.defaultScope)

	cacheKey := fmt.Sprintf("%s@%d|%d-%02d", scope, s.scopeVersion(scope), year, int(month))
	if cached, ok := s.matrixCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	today := core.NewDate(now.Year(), now.Month(), now.Day())
	matrix, err := s.svc.GetMonth(r.Context(), scope, year, month, today)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build month", "error", err,
			"scope", scope, "year", year, "month", int(month))
		writeError(w, http.StatusInternalServerError, "failed to load calendar")
		return
	}

	resp := calendarResponse{
		Year:   year,
		Month:  int(month),
		Matrix: matrix,
		Totals: services.MonthAnalytics(matrix, core.Money{}),
	}
	s.matrixCache.Set(cacheKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

type upsertDayRequest struct {
	Scope  string         `json:"scope"`
	Date   core.Date      `json:"date"`
	Events core.DayEvents `json:"events"`
}

func (s *Server) handleUpsertDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req upsertDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "missing or invalid date")
		return
	}

	events := normalizeEvents(&req.Events)
	if err := validateEvents(events); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	scope := scopeFrom(req.Scope, s.defaultScope)
	if err := s.svc.UpsertDay(r.Context(), scope, req.Date, events); err != nil {
		slog.ErrorContext(r.Context(), "Failed to upsert day", "error", err,
			"scope", scope, "date", req.Date.Key())
		writeError(w, http.StatusInternalServerError, "failed to save day")
		return
	}

	s.bumpScopeVersion(scope)
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "date": req.Date.Key()})
}

// normalizeEvents trims item names and replaces nil category lists so
// storage and responses always see well-formed collections.
func normalizeEvents(events *core.DayEvents) *core.DayEvents {
	out := core.NewDayEvents()
	for _, category := range core.Categories() {
		for _, item := range events.Items(category) {
			item.Name = sanitizeInput(item.Name)
			out.Add(category, item)
		}
	}
	return out
}

func validateEvents(events *core.DayEvents) error {
	for _, category := range core.Categories() {
		for _, item := range events.Items(category) {
			if item.Name == "" {
				return fmt.Errorf("%s item: %w", category, core.ErrEmptyName)
			}
			if len(item.Name) > 200 {
				return fmt.Errorf("%s item: %w", category, core.ErrNameTooLong)
			}
			if err := item.Amount.Validate(); err != nil {
				return fmt.Errorf("%s item %q: %w", category, item.Name, err)
			}
		}
	}
	return nil
}

type createRecurringRequest struct {
	Scope       string        `json:"scope"`
	Type        core.Category `json:"type"`
	Name        string        `json:"name"`
	Amount      core.Money    `json:"amount"`
	StartDate   core.Date     `json:"startDate"`
	Cadence     core.Cadence  `json:"cadence"`
	MonthsCount int           `json:"monthsCount"`
	Forever     bool          `json:"forever"`
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	scope := scopeFrom(req.Scope, s.defaultScope)
	rule, err := s.svc.CreateRecurringRule(r.Context(), scope, core.RecurringRule{
		Type:        req.Type,
		Name:        sanitizeInput(req.Name),
		Amount:      req.Amount,
		StartDate:   req.StartDate,
		Cadence:     req.Cadence,
		MonthsCount: req.MonthsCount,
		Forever:     req.Forever,
	})
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Failed to create recurring rule", "error", err, "scope", scope)
		writeError(w, http.StatusInternalServerError, "failed to create recurring rule")
		return
	}

	s.bumpScopeVersion(scope)
	writeJSON(w, http.StatusCreated, rule)
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrEmptyName,
		core.ErrNameTooLong,
		core.ErrInvalidCategory,
		core.ErrInvalidCadence,
		core.ErrInvalidLifetime,
		core.ErrInvalidDate,
		core.ErrInvalidAmount,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type deleteRecurringRequest struct {
	Scope       string    `json:"scope"`
	RecurringID string    `json:"recurringId"`
	Date        core.Date `json:"date"`
	DeleteScope string    `json:"deleteScope"`
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req deleteRecurringRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RecurringID == "" {
		writeError(w, http.StatusBadRequest, "missing recurringId")
		return
	}

	deleteScope := services.DeleteScope(req.DeleteScope)
	if !deleteScope.IsValid() {
		writeError(w, http.StatusBadRequest, "deleteScope must be 'one' or 'all'")
		return
	}
	if deleteScope == services.DeleteOne && req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "deleting one occurrence requires a date")
		return
	}

	scope := scopeFrom(req.Scope, s.defaultScope)
	if err := s.svc.DeleteRecurring(r.Context(), scope, req.RecurringID, req.Date, deleteScope); err != nil {
		slog.ErrorContext(r.Context(), "Failed to delete recurring rule", "error", err,
			"scope", scope, "rule_id", req.RecurringID)
		writeError(w, http.StatusInternalServerError, "failed to delete recurring rule")
		return
	}

	s.bumpScopeVersion(scope)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type balanceResponse struct {
	Date    core.Date  `json:"date"`
	Funds   core.Money `json:"funds"`
	Savings core.Money `json:"savings"`
	Cached  bool       `json:"cached"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := s.now()
	scope := scopeFrom(r.URL.Query().Get("scope"), s.defaultScope)

	asOf := core.NewDate(now.Year(), now.Month(), now.Day())
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}

	// A snapshot request serves the worker's precomputed figure instead
	// of projecting on the spot.
	if r.URL.Query().Get("snapshot") == "true" && s.snapshots != nil {
		snap, err := s.snapshots.GetSnapshot(r.Context(), scope, asOf)
		if errors.Is(err, store.ErrSnapshotNotFound) {
			writeError(w, http.StatusNotFound, "no snapshot for that date")
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to read snapshot", "error", err, "scope", scope)
			writeError(w, http.StatusInternalServerError, "failed to read snapshot")
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{
			Date: snap.Date, Funds: snap.Funds, Savings: snap.Savings, Cached: true,
		})
		return
	}

	baseFunds, err := parseMoneyParam(r, "funds")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	baseSavings, err := parseMoneyParam(r, "savings")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	funds, savings, err := s.svc.BalanceForDate(r.Context(), scope, asOf, baseFunds, baseSavings)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to project balance", "error", err,
			"scope", scope, "date", asOf.Key())
		writeError(w, http.StatusInternalServerError, "failed to project balance")
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Date: asOf, Funds: funds, Savings: savings})
}

func parseMoneyParam(r *http.Request, name string) (core.Money, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseDecimalToCents(v)
	if err != nil {
		return core.Money{}, fmt.Errorf("invalid %s amount %q", name, v)
	}
	return core.Money{Cents: cents}, nil
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := s.now()
	scope := scopeFrom(r.URL.Query().Get("scope"), s.defaultScope)

	reference := core.NewDate(now.Year(), now.Month(), now.Day())
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: must be YYYY-MM-DD")
			return
		}
		reference = parsed
	}

	initialFunds, err := parseMoneyParam(r, "funds")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	projection, err := s.svc.BetweenPaydays(r.Context(), scope, reference, initialFunds)
	if errors.Is(err, services.ErrNoUpcomingPayday) {
		writeError(w, http.StatusNotFound, "no upcoming payday")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to project between paydays", "error", err,
			"scope", scope, "date", reference.Key())
		writeError(w, http.StatusInternalServerError, "failed to compute projection")
		return
	}

	writeJSON(w, http.StatusOK, projection)
}
