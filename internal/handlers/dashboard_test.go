package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"monotub_dashboard/internal/device"
	"monotub_dashboard/internal/service"
)

func newDashboardRouter(d *mockDashboard) http.Handler {
	return newTestRouter(&service.Service{
		Authorization: &mockAuth{parseID: 7},
		Dashboard:     d,
	})
}

func doPost(t *testing.T, r http.Handler, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, target, nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDashboard_RequiresToken(t *testing.T) {
	r := newDashboardRouter(&mockDashboard{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestDashboard_GetView(t *testing.T) {
	d := &mockDashboard{view: service.View{
		CurrentTime: "01/08/2025, 10:00:00",
		Status:      service.StatusView{Temperature: "22.5", FanPower: "ON", FanPowerActive: true},
		TempChart:   service.ChartView{ID: service.ChartTemperature, Range: "week"},
	}}
	r := newDashboardRouter(d)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.Header.Set("Authorization", "Bearer valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var v service.View
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.Status.Temperature != "22.5" || !v.Status.FanPowerActive || v.TempChart.Range != "week" {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestDashboard_ActionsForwardArguments(t *testing.T) {
	d := &mockDashboard{}
	r := newDashboardRouter(d)

	steps := []struct {
		target string
		body   string
		check  func() bool
	}{
		{"/api/v1/dashboard/status/refresh", "", func() bool { return true }},
		{"/api/v1/dashboard/charts/refresh", "", func() bool { return true }},
		{"/api/v1/dashboard/charts/humChart/range", `{"range":"month"}`, func() bool { return d.lastChart == "humChart" && d.lastRange == "month" }},
		{"/api/v1/fan/toggle", "", func() bool { return d.lastAction == "toggle" }},
		{"/api/v1/fan/settings", `{"duration":10,"interval":6}`, func() bool {
			return d.lastFan == service.FanSettings{DurationMinutes: 10, IntervalHours: 6}
		}},
		{"/api/v1/setpoint", `{"setpoint":87.5}`, func() bool { return d.lastSetpoint == 87.5 }},
		{"/api/v1/storage/interval", `{"interval":15}`, func() bool { return d.lastInterval == 15 }},
		{"/api/v1/data/delete", `{"confirm":true}`, func() bool { return d.confirmed != nil && *d.confirmed }},
	}
	for _, st := range steps {
		w := doPost(t, r, st.target, st.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", st.target, w.Code, w.Body.String())
		}
		if !st.check() {
			t.Fatalf("%s: arguments not forwarded: %+v", st.target, d)
		}
	}
	want := []string{"UpdateStatus", "UpdateCharts", "ChangeTimeRange", "UpdateFan", "ConfigureFan", "SetSetpoint", "SetStorageInterval", "ConfirmDelete"}
	if strings.Join(d.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls=%v, want %v", d.calls, want)
	}
}

func TestDashboard_FanSettingsRouteWinsOverAction(t *testing.T) {
	d := &mockDashboard{}
	r := newDashboardRouter(d)
	if w := doPost(t, r, "/api/v1/fan/settings", `{"duration":5,"interval":4}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if d.lastAction != "" {
		t.Fatalf("settings body dispatched as fan action %q", d.lastAction)
	}
}

func TestDashboard_DeleteWithoutConfirmation(t *testing.T) {
	d := &mockDashboard{}
	r := newDashboardRouter(d)

	w := doPost(t, r, "/api/v1/data/delete", `{"confirm":false}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["prompt"] != service.DeletePrompt {
		t.Fatalf("prompt=%q", out["prompt"])
	}
	if d.confirmed == nil || *d.confirmed {
		t.Fatalf("confirm func should have answered false")
	}
}

func TestDashboard_DeleteSuccessMessage(t *testing.T) {
	r := newDashboardRouter(&mockDashboard{})
	w := doPost(t, r, "/api/v1/data/delete", `{"confirm":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out["message"] != service.MsgDataDeleted || out["status"] != statusOK {
		t.Fatalf("unexpected body: %v", out)
	}
	if _, ok := out["view"]; !ok {
		t.Fatalf("view missing from body: %v", out)
	}
}

func TestDashboard_BadBodies(t *testing.T) {
	cases := []struct {
		target string
		body   string
	}{
		{"/api/v1/dashboard/charts/tempChart/range", `{}`},
		{"/api/v1/fan/settings", `{"duration":"five"}`},
		{"/api/v1/setpoint", `{}`},
		{"/api/v1/storage/interval", `not json`},
		{"/api/v1/data/delete", `[]`},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			d := &mockDashboard{}
			w := doPost(t, newDashboardRouter(d), tc.target, tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400; body=%s", w.Code, w.Body.String())
			}
			if len(d.calls) != 0 {
				t.Fatalf("service called on a bad body: %v", d.calls)
			}
		})
	}
}

func TestDashboard_SetpointZeroIsAccepted(t *testing.T) {
	d := &mockDashboard{}
	if w := doPost(t, newDashboardRouter(d), "/api/v1/setpoint", `{"setpoint":0}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(d.calls) != 1 || d.lastSetpoint != 0 {
		t.Fatalf("calls=%v setpoint=%v", d.calls, d.lastSetpoint)
	}
}

func TestDashboard_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unknown chart", fmt.Errorf("chart %q: %w", "x", service.ErrUnknownChart), http.StatusBadRequest},
		{"empty range", service.ErrEmptyRange, http.StatusBadRequest},
		{"invalid setting", fmt.Errorf("setpoint 120: %w", service.ErrInvalidSetting), http.StatusBadRequest},
		{"stopped", service.ErrSchedulerStopped, http.StatusServiceUnavailable},
		{"timeout", fmt.Errorf("get /data: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"device status", &device.StatusError{Path: device.PathFanControl, Code: http.StatusInternalServerError}, http.StatusBadGateway},
		{"transport", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &mockDashboard{err: tc.err}
			w := doPost(t, newDashboardRouter(d), "/api/v1/fan/mode", "")
			if w.Code != tc.code {
				t.Fatalf("status=%d, want %d; body=%s", w.Code, tc.code, w.Body.String())
			}
			var out map[string]string
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out["error"] == "" {
				t.Fatalf("missing error message: %s", w.Body.String())
			}
		})
	}
}

func TestDashboard_CommandAppliedRefreshFailed(t *testing.T) {
	refreshErr := fmt.Errorf("%w: %w", service.ErrRefreshAfterCommand, errors.New("GET /data: connection reset"))
	cases := []struct {
		target string
		body   string
	}{
		{"/api/v1/fan/toggle", ""},
		{"/api/v1/fan/settings", `{"duration":5,"interval":4}`},
		{"/api/v1/setpoint", `{"setpoint":90}`},
		{"/api/v1/data/delete", `{"confirm":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			d := &mockDashboard{err: refreshErr, view: service.View{Status: service.StatusView{Stale: true}}}
			w := doPost(t, newDashboardRouter(d), tc.target, tc.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status=%d, want 200; body=%s", w.Code, w.Body.String())
			}
			var out struct {
				Status  string       `json:"status"`
				Warning string       `json:"warning"`
				View    service.View `json:"view"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if out.Status != statusOK || !strings.Contains(out.Warning, "connection reset") || !out.View.Status.Stale {
				t.Fatalf("unexpected body: %s", w.Body.String())
			}
		})
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), statusOK) {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
}

func TestIndexPage(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := w.Body.String()
	for _, id := range []string{"tempChart", "humChart", "temperature", "humidity", "fogStatus", "fanPower", "fanMode", "currentTime", "fanPowerBtn", `name="setpoint"`} {
		if !strings.Contains(body, id) {
			t.Fatalf("page lacks %s", id)
		}
	}
	if !strings.Contains(body, service.DeletePrompt) {
		t.Fatalf("page lacks the delete prompt")
	}
}
