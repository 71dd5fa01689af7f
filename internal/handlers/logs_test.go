package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"monotub_dashboard/internal/models"
	"monotub_dashboard/internal/service"
)

func doGet(t *testing.T, s *service.Service, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := newTestRouter(s)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.DashboardEvent{
		{EventID: "e1", OccurredAt: now, Type: service.EventFanControl, Description: "fan toggle"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: service.EventRangeChange, Description: "tempChart -> week"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}

	// Invalid 'from' → 400
	if w := doGet(t, s, "/api/v1/logs/?from=notatime"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range and type (lowercase type is normalized to upper before the service call)
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=range_change"
	w := doGet(t, s, q)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                     `json:"count"`
		Events []models.DashboardEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != service.EventRangeChange {
		t.Fatalf("expected lastType %s, got %q", service.EventRangeChange, logs.lastType)
	}
	if !logs.lastFrom.Equal(now) {
		t.Fatalf("lastFrom=%v, want %v", logs.lastFrom, now)
	}
}

func TestLogsHandler_DateOnlyToCoversWholeDay(t *testing.T) {
	logs := &mockEventLog{}
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs}

	w := doGet(t, s, "/api/v1/logs/?from=2025-08-01&to=2025-08-01")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	wantTo := time.Date(2025, 8, 1, 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
	if !logs.lastTo.Equal(wantTo) {
		t.Fatalf("lastTo=%v, want %v", logs.lastTo, wantTo)
	}
}

func TestLogsHandler_Since(t *testing.T) {
	cases := []struct {
		name  string
		query string
		code  int
	}{
		{"valid", "?since=24h", http.StatusOK},
		{"negative", "?since=-1h", http.StatusBadRequest},
		{"garbage", "?since=yesterday", http.StatusBadRequest},
		{"with from", "?since=1h&from=2025-08-01", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := &mockEventLog{}
			s := &service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: logs}
			before := time.Now().Add(-24 * time.Hour)

			w := doGet(t, s, "/api/v1/logs/"+tc.query)
			if w.Code != tc.code {
				t.Fatalf("status=%d, want %d; body=%s", w.Code, tc.code, w.Body.String())
			}
			if tc.code == http.StatusOK {
				after := time.Now().Add(-24 * time.Hour)
				if logs.lastFrom.Before(before.Add(-time.Second)) || logs.lastFrom.After(after.Add(time.Second)) {
					t.Fatalf("lastFrom=%v not ~24h ago", logs.lastFrom)
				}
			}
		})
	}
}

func TestLogsHandler_FromAfterTo(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: &mockEventLog{}}
	if w := doGet(t, s, "/api/v1/logs/?from=2025-08-02&to=2025-08-01"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLogsHandler_ServiceError(t *testing.T) {
	s := &service.Service{Authorization: &mockAuth{parseID: 1}, EventLog: &mockEventLog{err: errors.New("db down")}}
	w := doGet(t, s, "/api/v1/logs/")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["error"] != "failed to load logs" {
		t.Fatalf("unexpected error body: %v", out)
	}
}
