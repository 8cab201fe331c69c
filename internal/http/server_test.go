package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paycal/internal/core"
	"paycal/internal/services"
	"paycal/internal/store"
	"paycal/internal/store/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	svc := services.NewCalendarService(st, nil)
	srv := NewServer(":0", svc, st, "default")
	srv.now = func() time.Time {
		return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, st
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestGetCalendar(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/calendar?year=2024&month=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp calendarResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Year != 2024 || resp.Month != 3 {
		t.Errorf("year/month = %d/%d, want 2024/3", resp.Year, resp.Month)
	}
	if len(resp.Matrix) != services.GridWeeks {
		t.Fatalf("matrix rows = %d, want %d", len(resp.Matrix), services.GridWeeks)
	}

	// Category lists must serialize as arrays, never null.
	if strings.Contains(rec.Body.String(), `"bills":null`) {
		t.Error("bills serialized as null")
	}

	var todayCells int
	for _, row := range resp.Matrix {
		for _, cell := range row {
			if cell.IsToday {
				todayCells++
				if cell.Date.Key() != "2024-03-10" {
					t.Errorf("IsToday on %s", cell.Date.Key())
				}
			}
		}
	}
	if todayCells != 1 {
		t.Errorf("today cells = %d, want 1", todayCells)
	}
}

func TestGetCalendarRejectsBadMonth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/calendar?year=2024&month=13", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpsertDayRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"scope":"alice","date":"2024-03-05","events":{"bills":[{"name":"Water","amount":30.00}]}}`
	rec := doRequest(t, srv, http.MethodPost, "/api/calendar/day", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar?scope=alice&year=2024&month=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"Water"`) {
		t.Error("upserted bill missing from calendar response")
	}

	// Replace the day and check the old item is gone even though the
	// first response was cached.
	body = `{"scope":"alice","date":"2024-03-05","events":{"purchases":[{"name":"Book","amount":25}]}}`
	rec = doRequest(t, srv, http.MethodPost, "/api/calendar/day", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("second upsert status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar?scope=alice&year=2024&month=3", "")
	bodyStr := rec.Body.String()
	if strings.Contains(bodyStr, `"Water"`) {
		t.Error("stale cached response served after write")
	}
	if !strings.Contains(bodyStr, `"Book"`) {
		t.Error("replacing item missing from calendar response")
	}
}

func TestUpsertDayValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"scope":`, http.StatusBadRequest},
		{"missing date", `{"scope":"alice","events":{}}`, http.StatusBadRequest},
		{"invalid date", `{"scope":"alice","date":"2024-02-30","events":{}}`, http.StatusBadRequest},
		{"blank item name", `{"date":"2024-03-05","events":{"bills":[{"name":"  ","amount":10}]}}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"date":"2024-03-05","events":{"bills":[{"name":"Water","amount":0}]}}`, http.StatusUnprocessableEntity},
		{"valid", `{"date":"2024-03-05","events":{"bills":[{"name":"Water","amount":10}]}}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/calendar/day", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCreateRecurring(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"scope":"alice","type":"payday","name":"Salary","amount":1000,"startDate":"2024-03-01","cadence":"biweekly","forever":true}`
	rec := doRequest(t, srv, http.MethodPost, "/api/calendar/recurring", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var rule core.RecurringRule
	if err := json.Unmarshal(rec.Body.Bytes(), &rule); err != nil {
		t.Fatalf("decode rule: %v", err)
	}
	if rule.ID == "" {
		t.Error("created rule has no id")
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar?scope=alice&year=2024&month=3", "")
	if got := strings.Count(rec.Body.String(), `"Salary"`); got != 3 {
		t.Errorf("march calendar shows %d paydays, want 3", got)
	}
}

func TestCreateRecurringValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"empty name", `{"type":"bill","name":"","amount":10,"startDate":"2024-03-01","cadence":"monthly","forever":true}`, http.StatusUnprocessableEntity},
		{"bad category", `{"type":"subscription","name":"X","amount":10,"startDate":"2024-03-01","cadence":"monthly","forever":true}`, http.StatusUnprocessableEntity},
		{"bad cadence", `{"type":"bill","name":"X","amount":10,"startDate":"2024-03-01","cadence":"yearly","forever":true}`, http.StatusUnprocessableEntity},
		{"no lifetime", `{"type":"bill","name":"X","amount":10,"startDate":"2024-03-01","cadence":"monthly"}`, http.StatusUnprocessableEntity},
		{"months count lifetime", `{"type":"bill","name":"X","amount":10,"startDate":"2024-03-01","cadence":"monthly","monthsCount":2}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/calendar/recurring", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestDeleteRecurring(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"scope":"alice","type":"bill","name":"Streaming","amount":12.99,"startDate":"2024-03-04","cadence":"weekly","forever":true}`
	rec := doRequest(t, srv, http.MethodPost, "/api/calendar/recurring", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var rule core.RecurringRule
	if err := json.Unmarshal(rec.Body.Bytes(), &rule); err != nil {
		t.Fatalf("decode rule: %v", err)
	}

	del := `{"scope":"alice","recurringId":"` + rule.ID + `","date":"2024-03-11","deleteScope":"one"}`
	rec = doRequest(t, srv, http.MethodPost, "/api/calendar/recurring/delete", del)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete one status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar?scope=alice&year=2024&month=3", "")
	if got := strings.Count(rec.Body.String(), `"Streaming"`); got != 3 {
		t.Errorf("after one deletion calendar shows %d bills, want 3", got)
	}

	del = `{"scope":"alice","recurringId":"` + rule.ID + `","deleteScope":"all"}`
	rec = doRequest(t, srv, http.MethodPost, "/api/calendar/recurring/delete", del)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete all status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar?scope=alice&year=2024&month=3", "")
	if strings.Contains(rec.Body.String(), `"Streaming"`) {
		t.Error("rule occurrences survive delete all")
	}
}

func TestDeleteRecurringValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing id", `{"deleteScope":"all"}`, http.StatusBadRequest},
		{"bad scope", `{"recurringId":"x","deleteScope":"some"}`, http.StatusBadRequest},
		{"one without date", `{"recurringId":"x","deleteScope":"one"}`, http.StatusBadRequest},
		{"unknown rule is no-op", `{"recurringId":"x","deleteScope":"all"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/calendar/recurring/delete", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBalanceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"scope":"alice","type":"payday","name":"Salary","amount":1000,"startDate":"2024-03-01","cadence":"biweekly","forever":true}`
	if rec := doRequest(t, srv, http.MethodPost, "/api/calendar/recurring", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/balance?scope=alice&date=2024-03-10&funds=100", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// 100 base plus the 2024-03-01 payday.
	if want := int64(110000); resp.Funds.Cents != want {
		t.Errorf("funds = %d cents, want %d", resp.Funds.Cents, want)
	}
	if resp.Cached {
		t.Error("fresh balance flagged as cached")
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar/balance?date=03-2024", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
}

func TestBalanceSnapshot(t *testing.T) {
	srv, st := newTestServer(t)

	snap := store.BalanceSnapshot{
		Scope:       "alice",
		Date:        core.NewDate(2024, time.March, 10),
		Funds:       core.Money{Cents: 95000},
		Savings:     core.Money{Cents: 20000},
		GeneratedAt: time.Now(),
	}
	if err := st.UpsertSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("UpsertSnapshot: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/balance?scope=alice&date=2024-03-10&snapshot=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp balanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Cached || resp.Funds.Cents != 95000 {
		t.Errorf("snapshot response = %+v", resp)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar/balance?scope=alice&date=2024-03-11&snapshot=true", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing snapshot status = %d, want 404", rec.Code)
	}
}

func TestProjectionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/calendar/projection?scope=alice&date=2024-03-10", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty scope projection status = %d, want 404", rec.Code)
	}

	body := `{"scope":"alice","type":"payday","name":"Salary","amount":1000,"startDate":"2024-03-01","cadence":"biweekly","forever":true}`
	if rec := doRequest(t, srv, http.MethodPost, "/api/calendar/recurring", body); rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	bill := `{"scope":"alice","date":"2024-03-05","events":{"bills":[{"name":"Internet","amount":50}]}}`
	if rec := doRequest(t, srv, http.MethodPost, "/api/calendar/day", bill); rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/calendar/projection?scope=alice&date=2024-03-10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var p services.Projection
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode projection: %v", err)
	}
	if got := p.NextPaydayDate.Key(); got != "2024-03-15" {
		t.Errorf("next payday = %s, want 2024-03-15", got)
	}
	if want := int64(195000); p.ProjectedBalance.Cents != want {
		t.Errorf("projected balance = %d, want %d", p.ProjectedBalance.Cents, want)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := doRequest(t, srv, http.MethodPost, "/api/calendar", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/calendar status = %d, want 405", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodGet, "/api/calendar/day", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/calendar/day status = %d, want 405", rec.Code)
	}
}
