package simulator

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"monotub_dashboard/internal/device"

	"github.com/gin-gonic/gin"
)

func newTestServer(t *testing.T, d *Device) (*httptest.Server, *device.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(NewHandler(d, nil).InitRoutes())
	t.Cleanup(srv.Close)
	return srv, device.NewClient(srv.URL, time.Second)
}

func TestHandler_DataMatchesClient(t *testing.T) {
	d := NewDevice(WithSensor(&scriptedSensor{temp: 23.44, humidity: 86.66}))
	d.Step(t0)
	_, client := newTestServer(t, d)

	st, hasSetpoint, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !hasSetpoint || st.Setpoint != DefaultSetpoint {
		t.Fatalf("setpoint = %v (present %v)", st.Setpoint, hasSetpoint)
	}
	if st.Temperature != 23.4 || st.Humidity != 86.7 || !st.FogState || !st.FanState || st.FanManual {
		t.Fatalf("status = %+v", st)
	}
}

func TestHandler_History(t *testing.T) {
	now := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC)
	d := NewDevice(
		WithLocation(time.UTC),
		WithClock(func() time.Time { return now }),
		WithRecords([]Record{
			{At: now.Add(-3 * 24 * time.Hour), TempC: 19.5, Humidity: 91},
			{At: now.Add(-time.Hour), TempC: 20.5, Humidity: 92},
		}),
	)
	_, client := newTestServer(t, d)

	tests := []struct {
		rng, series string
		want        []float64
		wantLabels  []string
	}{
		{rng: "day", series: device.SeriesTemperature, want: []float64{20.5}, wantLabels: []string{"11:00"}},
		{rng: "week", series: device.SeriesHumidity, want: []float64{91, 92}, wantLabels: []string{"2025-04-27 12:00", "2025-04-30 11:00"}},
	}
	for _, tc := range tests {
		t.Run(tc.rng+"/"+tc.series, func(t *testing.T) {
			got, err := client.History(context.Background(), tc.rng, tc.series)
			if err != nil {
				t.Fatalf("History: %v", err)
			}
			if !reflect.DeepEqual(got.Values, tc.want) || !reflect.DeepEqual(got.Labels, tc.wantLabels) {
				t.Fatalf("history = %+v", got)
			}
		})
	}
}

func TestHandler_EmptyHistoryIsEmptyArrays(t *testing.T) {
	srv, _ := newTestServer(t, NewDevice())
	resp, err := http.Get(srv.URL + device.PathHistory)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"labels":[],"values":[]}` {
		t.Fatalf("body = %s", got)
	}
}

func TestHandler_Controls(t *testing.T) {
	d := NewDevice(WithSensor(&scriptedSensor{temp: 21, humidity: 95}))
	d.Step(t0)
	_, client := newTestServer(t, d)
	ctx := context.Background()

	if err := client.FanControl(ctx, "mode"); err != nil {
		t.Fatalf("FanControl mode: %v", err)
	}
	if err := client.FanControl(ctx, "toggle"); err != nil {
		t.Fatalf("FanControl toggle: %v", err)
	}
	st := d.Status()
	if !st.FanManual || st.FanState {
		t.Fatalf("after mode+toggle: %+v", st)
	}

	if err := client.SetSetpoint(ctx, 97.5); err != nil {
		t.Fatalf("SetSetpoint: %v", err)
	}
	if st := d.Status(); st.Setpoint != 97.5 || !st.FogState {
		t.Fatalf("after setpoint: %+v", st)
	}

	if err := client.FanSettings(ctx, 10, 2); err != nil {
		t.Fatalf("FanSettings: %v", err)
	}
	if err := client.SetStorageInterval(ctx, 15); err != nil {
		t.Fatalf("SetStorageInterval: %v", err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fanDuration != 10*time.Minute || d.fanInterval != 2*time.Hour || d.recordInterval != 15*time.Minute {
		t.Fatalf("settings = %v %v %v", d.fanDuration, d.fanInterval, d.recordInterval)
	}
}

func TestHandler_OutOfRangeSettingsIgnored(t *testing.T) {
	d := NewDevice()
	srv, _ := newTestServer(t, d)

	resp, err := http.PostForm(srv.URL+device.PathFanControl, url.Values{"duration": {"0"}, "interval": {"abc"}})
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if d.fanDuration != DefaultFanDuration || d.fanInterval != DefaultFanInterval {
		t.Fatal("invalid values must be ignored")
	}
}

func TestHandler_DeleteData(t *testing.T) {
	d := NewDevice(WithRecords([]Record{{At: t0}}))
	_, client := newTestServer(t, d)

	if err := client.DeleteData(context.Background()); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	err := client.DeleteData(context.Background())
	var se *device.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("second delete err = %v", err)
	}
}
