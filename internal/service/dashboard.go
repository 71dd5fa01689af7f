package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"monotub_dashboard/internal/device"
	"monotub_dashboard/internal/logger"
	"monotub_dashboard/internal/models"
	"monotub_dashboard/internal/repository"
)

// DeviceAPI is the part of the device HTTP API the dashboard drives.
type DeviceAPI interface {
	Status(ctx context.Context) (models.DeviceStatus, bool, error)
	History(ctx context.Context, rng, series string) (models.ChartSeries, error)
	FanControl(ctx context.Context, action string) error
	FanSettings(ctx context.Context, durationMin, intervalHours int) error
	DeleteData(ctx context.Context) error
	SetSetpoint(ctx context.Context, setpoint float64) error
	SetStorageInterval(ctx context.Context, minutes int) error
}

// Journal records operator actions and refresh failures.
type Journal interface {
	Record(ctx context.Context, typ, description string, meta map[string]any) error
}

// Target names one independently refreshed part of the view.
type Target string

const (
	TargetStatus    Target = "status"
	TargetTempChart Target = ChartTemperature
	TargetHumChart  Target = ChartHumidity
)

var (
	ErrUnknownChart       = errors.New("unknown chart")
	ErrEmptyRange         = errors.New("range must not be empty")
	ErrDeleteNotConfirmed = errors.New("data deletion not confirmed")
	ErrInvalidSetting     = errors.New("invalid setting")
	ErrUnknownTarget      = errors.New("unknown refresh target")
	// ErrRefreshAfterCommand wraps a refresh failure that followed a
	// successful device command: the command took effect, the view is stale.
	ErrRefreshAfterCommand = errors.New("command applied but refresh failed")
)

// User-facing texts of the delete flow.
const (
	DeletePrompt    = "Are you sure you want to delete all historical data? This action cannot be undone."
	MsgDataDeleted  = "Data deleted successfully"
	MsgDeleteFailed = "Error deleting data"
)

// Bounds the firmware accepts for its settings.
const (
	MinSetpoint        = 0.0
	MaxSetpoint        = 100.0
	MinFanDuration     = 1
	MaxFanDuration     = 60
	MinFanInterval     = 1
	MaxFanInterval     = 24
	MinStorageInterval = 1
	MaxStorageInterval = 60
)

const (
	DefaultRange       = "day"
	DefaultClockLayout = "02/01/2006, 15:04:05"
)

// Update kinds delivered to subscribers.
const (
	KindStatus       = "status"
	KindChart        = "chart"
	KindClock        = "clock"
	KindNotification = "notification"
)

const (
	NotifyInfo  = "info"
	NotifyError = "error"
)

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(prompt string) bool

// FanSettings is the automatic fan cycle: run for DurationMinutes every IntervalHours.
type FanSettings struct {
	DurationMinutes int `json:"duration"`
	IntervalHours   int `json:"interval"`
}

// Notification is a user-visible message, the page shows it as an alert.
type Notification struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Update describes one change of the view. Only the field matching Kind is set;
// Reading carries the raw status of a successful poll, and SetpointKnown tells
// whether Reading.Setpoint was ever reported.
type Update struct {
	Kind          string
	Status        *StatusView
	Chart         *ChartView
	CurrentTime   string
	Notification  *Notification
	Reading       *models.DeviceStatus
	SetpointKnown bool
}

type DashboardConfig struct {
	DefaultRange string
	ClockLayout  string
	Location     *time.Location
}

// DashboardService owns the view model and forwards operator actions to the device.
type DashboardService struct {
	device    DeviceAPI
	journal   Journal
	snapshots repository.StateRepo
	log       *logger.Logger
	layout    string
	loc       *time.Location
	now       func() time.Time
	refresher Refresher

	mu       sync.RWMutex
	view     View
	last     models.DeviceStatus
	haveLast bool
	// haveSetpoint is false until some reading carried a setpoint.
	haveSetpoint bool
	failing      map[Target]bool

	subMu   sync.RWMutex
	subs    map[int]func(Update)
	nextSub int
}

// NewDashboardService builds the dashboard with both charts empty and set to the default range.
// journal and snapshots may be nil.
func NewDashboardService(dev DeviceAPI, journal Journal, snapshots repository.StateRepo, cfg DashboardConfig, log *logger.Logger) *DashboardService {
	if cfg.DefaultRange == "" {
		cfg.DefaultRange = DefaultRange
	}
	if cfg.ClockLayout == "" {
		cfg.ClockLayout = DefaultClockLayout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &DashboardService{
		device:    dev,
		journal:   journal,
		snapshots: snapshots,
		log:       log,
		layout:    cfg.ClockLayout,
		loc:       cfg.Location,
		now:       time.Now,
		failing:   make(map[Target]bool),
		subs:      make(map[int]func(Update)),
		view: View{
			TempChart: newChart(ChartTemperature, "Temperature (°C)", "rgb(255, 99, 132)", cfg.DefaultRange),
			HumChart:  newChart(ChartHumidity, "Humidity (%)", "rgb(54, 162, 235)", cfg.DefaultRange),
		},
	}
	s.refresher = directRefresher{worker: s}
	return s
}

// UseRefresher routes refresh requests through r. Call before the service is shared.
func (s *DashboardService) UseRefresher(r Refresher) {
	s.refresher = r
}

// View returns a copy of the current view.
func (s *DashboardService) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.clone()
}

// Restore seeds the status display from the last persisted reading, marked stale.
func (s *DashboardService) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore status: %w", err)
	}
	if snap.ID == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haveLast {
		return nil
	}
	s.last, s.haveLast = snap.Status, true
	s.haveSetpoint = snap.HasSetpoint
	s.view.Status = formatStatus(snap.Status, snap.ReceivedAt)
	if !snap.HasSetpoint {
		s.view.Status.Setpoint = ""
	}
	s.view.Status.Stale = true
	return nil
}

func (s *DashboardService) UpdateStatus(ctx context.Context) error {
	return s.refresher.Refresh(ctx, TargetStatus)
}

// UpdateCharts refreshes both charts independently; a failure of one leaves the other's update intact.
func (s *DashboardService) UpdateCharts(ctx context.Context) error {
	return s.refresher.Refresh(ctx, TargetTempChart, TargetHumChart)
}

// ChangeTimeRange selects rng for one chart and refreshes both charts.
func (s *DashboardService) ChangeTimeRange(ctx context.Context, chartID, rng string) error {
	if rng == "" {
		return ErrEmptyRange
	}
	s.mu.Lock()
	ch := s.chartLocked(chartID)
	if ch == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownChart, chartID)
	}
	prev := ch.Range
	ch.Range = rng
	s.mu.Unlock()

	if prev != rng {
		s.log.Infow("range_changed", "chart", chartID, "from", prev, "to", rng)
		s.record(ctx, EventRangeChange, fmt.Sprintf("%s range set to %s", chartID, rng),
			map[string]any{"chart": chartID, "from": prev, "to": rng})
	}
	return s.UpdateCharts(ctx)
}

// UpdateFan sends action to the fan controller and refreshes status on success.
func (s *DashboardService) UpdateFan(ctx context.Context, action string) error {
	if action == "" {
		return fmt.Errorf("%w: fan action is empty", ErrInvalidSetting)
	}
	if err := s.device.FanControl(ctx, action); err != nil {
		s.commandFailed(ctx, "fan-control", err, map[string]any{"action": action})
		return fmt.Errorf("fan control %q: %w", action, err)
	}
	s.record(ctx, EventFanControl, fmt.Sprintf("Fan action %q sent", action), map[string]any{"action": action})
	return afterCommand(s.UpdateStatus(ctx))
}

// ConfigureFan sets the automatic fan cycle and refreshes status on success.
func (s *DashboardService) ConfigureFan(ctx context.Context, fs FanSettings) error {
	if fs.DurationMinutes < MinFanDuration || fs.DurationMinutes > MaxFanDuration {
		return fmt.Errorf("%w: fan duration %d not in [%d, %d] minutes", ErrInvalidSetting, fs.DurationMinutes, MinFanDuration, MaxFanDuration)
	}
	if fs.IntervalHours < MinFanInterval || fs.IntervalHours > MaxFanInterval {
		return fmt.Errorf("%w: fan interval %d not in [%d, %d] hours", ErrInvalidSetting, fs.IntervalHours, MinFanInterval, MaxFanInterval)
	}
	meta := map[string]any{"duration": fs.DurationMinutes, "interval": fs.IntervalHours}
	if err := s.device.FanSettings(ctx, fs.DurationMinutes, fs.IntervalHours); err != nil {
		s.commandFailed(ctx, "fan-settings", err, meta)
		return fmt.Errorf("fan settings: %w", err)
	}
	s.record(ctx, EventFanSettings, "Fan cycle updated", meta)
	return afterCommand(s.UpdateStatus(ctx))
}

// SetSetpoint sets the humidity setpoint and refreshes status on success.
func (s *DashboardService) SetSetpoint(ctx context.Context, setpoint float64) error {
	if math.IsNaN(setpoint) || setpoint < MinSetpoint || setpoint > MaxSetpoint {
		return fmt.Errorf("%w: setpoint %v not in [%v, %v]", ErrInvalidSetting, setpoint, MinSetpoint, MaxSetpoint)
	}
	meta := map[string]any{"setpoint": setpoint}
	if err := s.device.SetSetpoint(ctx, setpoint); err != nil {
		s.commandFailed(ctx, "config", err, meta)
		return fmt.Errorf("set setpoint: %w", err)
	}
	s.record(ctx, EventSetpoint, fmt.Sprintf("Setpoint set to %.1f", setpoint), meta)
	return afterCommand(s.UpdateStatus(ctx))
}

// SetStorageInterval sets how often the device stores a history record.
func (s *DashboardService) SetStorageInterval(ctx context.Context, minutes int) error {
	if minutes < MinStorageInterval || minutes > MaxStorageInterval {
		return fmt.Errorf("%w: storage interval %d not in [%d, %d] minutes", ErrInvalidSetting, minutes, MinStorageInterval, MaxStorageInterval)
	}
	meta := map[string]any{"interval": minutes}
	if err := s.device.SetStorageInterval(ctx, minutes); err != nil {
		s.commandFailed(ctx, "storage-config", err, meta)
		return fmt.Errorf("set storage interval: %w", err)
	}
	s.record(ctx, EventStorageInterval, fmt.Sprintf("Storage interval set to %d min", minutes), meta)
	return nil
}

// ConfirmDelete deletes all device history once confirm accepts DeletePrompt.
// The outcome is broadcast as a notification; charts refresh only on success.
func (s *DashboardService) ConfirmDelete(ctx context.Context, confirm ConfirmFunc) error {
	if confirm == nil || !confirm(DeletePrompt) {
		return ErrDeleteNotConfirmed
	}
	if err := s.device.DeleteData(ctx); err != nil {
		s.log.Errorw("delete_data_failed", "error", err)
		s.record(ctx, EventDeleteDataFailed, MsgDeleteFailed, map[string]any{"error": err.Error()})
		s.notify(NotifyError, MsgDeleteFailed)
		return fmt.Errorf("delete data: %w", err)
	}
	s.log.Infow("data_deleted")
	s.record(ctx, EventDeleteData, MsgDataDeleted, nil)
	s.notify(NotifyInfo, MsgDataDeleted)
	return afterCommand(s.UpdateCharts(ctx))
}

func afterCommand(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRefreshAfterCommand, err)
}

// Tick re-renders the clock.
func (s *DashboardService) Tick(now time.Time) {
	text := now.In(s.loc).Format(s.layout)
	s.mu.Lock()
	s.view.CurrentTime = text
	s.mu.Unlock()
	s.publish(Update{Kind: KindClock, CurrentTime: text})
}

// Subscribe registers fn for every view update. fn runs on the updating
// goroutine and must not block. The returned func unsubscribes.
func (s *DashboardService) Subscribe(fn func(Update)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Work performs one refresh of t against the device.
func (s *DashboardService) Work(ctx context.Context, t Target) error {
	switch t {
	case TargetStatus:
		return s.refreshStatus(ctx)
	case TargetTempChart, TargetHumChart:
		return s.refreshChart(ctx, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTarget, t)
	}
}

func (s *DashboardService) refreshStatus(ctx context.Context) error {
	st, hasSetpoint, err := s.device.Status(ctx)
	if err != nil {
		s.mu.Lock()
		s.view.Status.Stale = true
		sv := s.view.Status
		s.mu.Unlock()
		s.recordResult(ctx, TargetStatus, err)
		s.publish(Update{Kind: KindStatus, Status: &sv})
		return fmt.Errorf("update status: %w", err)
	}

	at := s.now()
	s.mu.Lock()
	if !hasSetpoint {
		st.Setpoint = s.last.Setpoint
		hasSetpoint = s.haveSetpoint
	}
	sv := formatStatus(st, at)
	if !hasSetpoint {
		sv.Setpoint = ""
	}
	s.view.Status = sv
	s.last, s.haveLast, s.haveSetpoint = st, true, hasSetpoint
	s.mu.Unlock()

	s.recordResult(ctx, TargetStatus, nil)
	s.saveSnapshot(ctx, st, hasSetpoint, at)
	s.publish(Update{Kind: KindStatus, Status: &sv, Reading: &st, SetpointKnown: hasSetpoint})
	return nil
}

func (s *DashboardService) refreshChart(ctx context.Context, t Target) error {
	id := string(t)
	s.mu.RLock()
	rng := s.chartLocked(id).Range
	s.mu.RUnlock()

	series, err := s.device.History(ctx, rng, seriesFor(id))
	if err != nil {
		s.recordResult(ctx, t, err)
		return fmt.Errorf("update %s: %w", id, err)
	}
	if series.Labels == nil {
		series.Labels = []string{}
	}
	if series.Values == nil {
		series.Values = []float64{}
	}

	s.mu.Lock()
	ch := s.chartLocked(id)
	if ch.Range != rng {
		// Range changed while in flight; the refresh queued by the change wins.
		s.mu.Unlock()
		s.recordResult(ctx, t, nil)
		return nil
	}
	ch.Labels = series.Labels
	ch.Values = series.Values
	ch.Revision++
	ch.UpdatedAt = s.now()
	out := ch.clone()
	s.mu.Unlock()

	s.recordResult(ctx, t, nil)
	s.publish(Update{Kind: KindChart, Chart: &out})
	return nil
}

func (s *DashboardService) chartLocked(id string) *ChartView {
	switch id {
	case ChartTemperature:
		return &s.view.TempChart
	case ChartHumidity:
		return &s.view.HumChart
	default:
		return nil
	}
}

func seriesFor(chartID string) string {
	if chartID == ChartTemperature {
		return device.SeriesTemperature
	}
	return device.SeriesHumidity
}

// recordResult tracks per-target health. Only ok->failed and failed->ok
// transitions reach the journal.
func (s *DashboardService) recordResult(ctx context.Context, t Target, err error) {
	s.mu.Lock()
	was := s.failing[t]
	if err != nil {
		s.failing[t] = true
		if s.view.Errors == nil {
			s.view.Errors = make(map[Target]string)
		}
		s.view.Errors[t] = err.Error()
	} else {
		delete(s.failing, t)
		delete(s.view.Errors, t)
		if len(s.view.Errors) == 0 {
			s.view.Errors = nil
		}
	}
	s.mu.Unlock()

	switch {
	case err != nil && !was:
		s.log.Warnw("refresh_failed", "target", t, "error", err)
		s.record(ctx, EventRefreshFailed, fmt.Sprintf("%s refresh failed", t),
			map[string]any{"target": string(t), "error": err.Error()})
	case err != nil:
		s.log.Debugw("refresh_still_failing", "target", t, "error", err)
	case was:
		s.log.Infow("refresh_recovered", "target", t)
		s.record(ctx, EventRefreshRecovered, fmt.Sprintf("%s refresh recovered", t),
			map[string]any{"target": string(t)})
	}
}

func (s *DashboardService) commandFailed(ctx context.Context, command string, err error, meta map[string]any) {
	s.log.Warnw("device_command_failed", "command", command, "error", err)
	m := map[string]any{"command": command, "error": err.Error()}
	for k, v := range meta {
		m[k] = v
	}
	s.record(ctx, EventDeviceCommandFail, fmt.Sprintf("%s command failed", command), m)
}

func (s *DashboardService) record(ctx context.Context, typ, description string, meta map[string]any) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, typ, description, meta); err != nil {
		s.log.Errorw("journal_write_failed", "type", typ, "error", err)
	}
}

func (s *DashboardService) saveSnapshot(ctx context.Context, st models.DeviceStatus, hasSetpoint bool, at time.Time) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, models.StatusSnapshot{ID: 1, Status: st, HasSetpoint: hasSetpoint, ReceivedAt: at}); err != nil {
		s.log.Warnw("snapshot_save_failed", "error", err)
	}
}

func (s *DashboardService) notify(level, message string) {
	n := Notification{Level: level, Message: message, At: s.now()}
	s.publish(Update{Kind: KindNotification, Notification: &n})
}

func (s *DashboardService) publish(u Update) {
	s.subMu.RLock()
	fns := make([]func(Update), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}
