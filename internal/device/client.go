// Package device talks to the monotub firmware over its HTTP endpoints.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"monotub_dashboard/internal/models"
)

// Endpoint paths served by the firmware.
const (
	PathData          = "/data"
	PathHistory       = "/history"
	PathFanControl    = "/fan-control"
	PathDeleteData    = "/delete-data"
	PathConfig        = "/config"
	PathStorageConfig = "/storage-config"

	maxBodyBytes = 4 << 20 // monthly history at 5 min sampling is well below this
)

// Series types accepted by /history.
const (
	SeriesTemperature = "temp"
	SeriesHumidity    = "hum"
)

// ErrUnexpectedStatus is matched by every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected device status")

// StatusError reports a response whose status code was not accepted.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: device answered %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// Client is a context-aware client for one device.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewClient builds a client for baseURL. A non-positive timeout disables the
// per-request deadline (the caller's context still applies).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &http.Client{
			// /config and /storage-config answer 303 to "/"; the redirect target is the
			// firmware's HTML page, which is of no use here.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// BaseURL returns the device root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// statusPayload mirrors /data. Pointers distinguish missing fields from zero values.
type statusPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	FogState    bool     `json:"fogState"`
	FanState    bool     `json:"fanState"`
	FanManual   bool     `json:"fanManual"`
	Setpoint    *float64 `json:"setpoint"`
}

// Status fetches the current reading. hasSetpoint is false when the firmware
// omitted the setpoint field (older firmware builds do not report it).
func (c *Client) Status(ctx context.Context) (st models.DeviceStatus, hasSetpoint bool, err error) {
	var p statusPayload
	if err := c.getJSON(ctx, PathData, nil, &p); err != nil {
		return models.DeviceStatus{}, false, err
	}
	if p.Temperature == nil || p.Humidity == nil {
		return models.DeviceStatus{}, false, fmt.Errorf("decode %s: temperature and humidity are required", PathData)
	}
	st = models.DeviceStatus{
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
		FogState:    p.FogState,
		FanState:    p.FanState,
		FanManual:   p.FanManual,
	}
	if p.Setpoint != nil {
		st.Setpoint = *p.Setpoint
		hasSetpoint = true
	}
	return st, hasSetpoint, nil
}

// History fetches one series for a range. The range string is passed through as-is.
func (c *Client) History(ctx context.Context, rng, series string) (models.ChartSeries, error) {
	q := url.Values{}
	q.Set("range", rng)
	q.Set("type", series)

	var out models.ChartSeries
	if err := c.getJSON(ctx, PathHistory, q, &out); err != nil {
		return models.ChartSeries{}, err
	}
	if len(out.Labels) != len(out.Values) {
		return models.ChartSeries{}, fmt.Errorf("decode %s: %d labels but %d values", PathHistory, len(out.Labels), len(out.Values))
	}
	if out.Labels == nil {
		out.Labels = []string{}
	}
	if out.Values == nil {
		out.Values = []float64{}
	}
	return out, nil
}

// FanControl posts an action (toggle, mode, ...) to /fan-control.
func (c *Client) FanControl(ctx context.Context, action string) error {
	q := url.Values{}
	q.Set("action", action)
	return c.post(ctx, PathFanControl, q, nil, isSuccess)
}

// FanSettings posts the auto-cycle duration (minutes) and interval (hours).
func (c *Client) FanSettings(ctx context.Context, durationMin, intervalHours int) error {
	form := url.Values{}
	form.Set("duration", strconv.Itoa(durationMin))
	form.Set("interval", strconv.Itoa(intervalHours))
	return c.post(ctx, PathFanControl, nil, form, isSuccess)
}

// DeleteData wipes the device's stored history.
func (c *Client) DeleteData(ctx context.Context) error {
	return c.post(ctx, PathDeleteData, nil, nil, isSuccess)
}

// SetSetpoint changes the humidity setpoint.
func (c *Client) SetSetpoint(ctx context.Context, setpoint float64) error {
	form := url.Values{}
	form.Set("setpoint", strconv.FormatFloat(setpoint, 'f', 1, 64))
	return c.post(ctx, PathConfig, nil, form, isSuccessOrSeeOther)
}

// SetStorageInterval changes how often the device records a history sample.
func (c *Client) SetStorageInterval(ctx context.Context, minutes int) error {
	form := url.Values{}
	form.Set("interval", strconv.Itoa(minutes))
	return c.post(ctx, PathStorageConfig, nil, form, isSuccessOrSeeOther)
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

func isSuccessOrSeeOther(code int) bool { return isSuccess(code) || code == http.StatusSeeOther }

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return fmt.Errorf("build GET %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer drain(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, q, form url.Values, accept func(int) bool) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, q), body)
	if err != nil {
		return fmt.Errorf("build POST %s: %w", path, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer drain(resp.Body)

	if !accept(resp.StatusCode) {
		return &StatusError{Method: http.MethodPost, Path: path, Code: resp.StatusCode}
	}
	return nil
}

// drain lets the transport reuse the connection.
func drain(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxBodyBytes))
	_ = rc.Close()
}
