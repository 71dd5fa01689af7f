// Package simulator serves the monotub firmware API from an in-process model
// of the chamber, for local development and tests.
package simulator

import (
	"context"
	"math"
	"sync"
	"time"
)

// Firmware defaults.
const (
	DefaultSetpoint       = 90.0
	DefaultRecordInterval = 5 * time.Minute
	DefaultFanDuration    = 5 * time.Minute
	DefaultFanInterval    = 4 * time.Hour

	// MaxRecords is one month of samples at the default record interval.
	MaxRecords = 8640
)

// Ambient model constants.
const (
	AmbientC         = 22.0
	DailySwingC      = 2.0
	FogGainPerMin    = 3.0 // %RH per minute while the fogger runs
	DryLossPerMin    = 0.8 // %RH per minute otherwise
	InitialHumidity  = 80.0
	minHumidity      = 30.0
	maxHumidity      = 100.0
	sensorReadPeriod = 2 * time.Second
	decimalScale     = 10
)

// Sensor produces a temperature/humidity reading. fogOn reports whether the
// fogger ran since the previous reading.
type Sensor interface {
	Read(now time.Time, elapsed time.Duration, fogOn bool) (tempC, humidity float64)
}

// chamberSensor models a chamber whose humidity rises while fogging and dries
// out otherwise, with a daily temperature swing around AmbientC.
type chamberSensor struct {
	humidity float64
}

func newChamberSensor() *chamberSensor {
	return &chamberSensor{humidity: InitialHumidity}
}

func (s *chamberSensor) Read(now time.Time, elapsed time.Duration, fogOn bool) (float64, float64) {
	minutes := elapsed.Minutes()
	if fogOn {
		s.humidity += FogGainPerMin * minutes
	} else {
		s.humidity -= DryLossPerMin * minutes
	}
	s.humidity = math.Max(minHumidity, math.Min(maxHumidity, s.humidity))

	hour := float64(now.Hour()) + float64(now.Minute())/60
	temp := AmbientC + DailySwingC*math.Sin(2*math.Pi*(hour-9)/24)
	return temp, s.humidity
}

// Record is one stored history sample.
type Record struct {
	At       time.Time
	TempC    float64
	Humidity float64
}

// Status is the live device state served on /data.
type Status struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	FogState    bool    `json:"fogState"`
	FanState    bool    `json:"fanState"`
	FanManual   bool    `json:"fanManual"`
	Setpoint    float64 `json:"setpoint"`
}

// Device is the simulated chamber controller. All methods are safe for concurrent use.
type Device struct {
	sensor Sensor
	loc    *time.Location
	now    func() time.Time

	mu             sync.Mutex
	tempC          float64
	humidity       float64
	setpoint       float64
	fogOn          bool
	fanOn          bool
	fanManual      bool
	fanDuration    time.Duration
	fanInterval    time.Duration
	recordInterval time.Duration
	lastRead       time.Time
	lastRecord     time.Time
	lastFanStart   time.Time
	fanStart       time.Time
	records        []Record
}

// Option customizes a Device.
type Option func(*Device)

// WithSensor replaces the chamber model.
func WithSensor(s Sensor) Option { return func(d *Device) { d.sensor = s } }

// WithLocation sets the zone history labels are rendered in.
func WithLocation(loc *time.Location) Option { return func(d *Device) { d.loc = loc } }

// WithClock sets the time source used by the HTTP handlers.
func WithClock(now func() time.Time) Option { return func(d *Device) { d.now = now } }

// WithRecords preloads history, oldest first.
func WithRecords(rs []Record) Option {
	return func(d *Device) { d.records = append([]Record(nil), rs...) }
}

func NewDevice(opts ...Option) *Device {
	d := &Device{
		sensor:         newChamberSensor(),
		loc:            time.Local,
		now:            time.Now,
		humidity:       InitialHumidity,
		tempC:          AmbientC,
		setpoint:       DefaultSetpoint,
		fanDuration:    DefaultFanDuration,
		fanInterval:    DefaultFanInterval,
		recordInterval: DefaultRecordInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run advances the model every tick until ctx is canceled.
func (d *Device) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	d.Step(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			d.Step(now)
		}
	}
}

// Step runs one firmware loop iteration at now: sensor read, fog and fan
// control, history sampling.
func (d *Device) Step(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastRead.IsZero() || now.Sub(d.lastRead) >= sensorReadPeriod {
		elapsed := time.Duration(0)
		if !d.lastRead.IsZero() {
			elapsed = now.Sub(d.lastRead)
		}
		d.tempC, d.humidity = d.sensor.Read(now, elapsed, d.fogOn)
		d.lastRead = now
		d.controlFog()
	}
	d.controlFan(now)

	if d.lastRecord.IsZero() || now.Sub(d.lastRecord) >= d.recordInterval {
		d.appendRecord(Record{At: now, TempC: round1(d.tempC), Humidity: round1(d.humidity)})
		d.lastRecord = now
	}
}

// controlFog keeps the fogger on while humidity is below the setpoint.
func (d *Device) controlFog() {
	d.fogOn = d.humidity < d.setpoint
}

// controlFan runs the fan with the fogger, every fanInterval on its own, and
// keeps it on for fanDuration after either. Manual mode leaves it alone.
func (d *Device) controlFan(now time.Time) {
	if d.fanManual {
		return
	}
	switch {
	case d.fogOn:
		d.fanOn = true
		d.fanStart, d.lastFanStart = now, now
	case d.lastFanStart.IsZero() || now.Sub(d.lastFanStart) >= d.fanInterval:
		d.fanOn = true
		d.fanStart, d.lastFanStart = now, now
	case d.fanOn && now.Sub(d.fanStart) >= d.fanDuration:
		d.fanOn = false
	}
}

func (d *Device) appendRecord(r Record) {
	d.records = append(d.records, r)
	if over := len(d.records) - MaxRecords; over > 0 {
		d.records = append(d.records[:0], d.records[over:]...)
	}
}

func (d *Device) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Temperature: round1(d.tempC),
		Humidity:    round1(d.humidity),
		FogState:    d.fogOn,
		FanState:    d.fanOn,
		FanManual:   d.fanManual,
		Setpoint:    d.setpoint,
	}
}

// Window returns how far back a history range reaches. Unknown ranges mean a day.
func Window(rng string) time.Duration {
	switch rng {
	case "month":
		return 30 * 24 * time.Hour
	case "week":
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// History returns the samples of the given series ("temp" or anything else
// for humidity) inside the range window ending at now.
func (d *Device) History(now time.Time, rng, series string) (labels []string, values []float64) {
	// Only "day" gets short labels; unknown ranges span a day but keep dates.
	layout := "2006-01-02 15:04"
	if rng == "day" {
		layout = "15:04"
	}
	limit := now.Add(-Window(rng))

	d.mu.Lock()
	defer d.mu.Unlock()
	labels, values = []string{}, []float64{}
	for _, r := range d.records {
		if r.At.Before(limit) {
			continue
		}
		labels = append(labels, r.At.In(d.loc).Format(layout))
		if series == "temp" {
			values = append(values, r.TempC)
		} else {
			values = append(values, r.Humidity)
		}
	}
	return labels, values
}

// DeleteData drops all history. It reports false when there was none.
func (d *Device) DeleteData() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.records) == 0 {
		return false
	}
	d.records = nil
	return true
}

// FanAction applies a fan-control action; unknown actions are ignored.
func (d *Device) FanAction(action string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch action {
	case "toggle":
		d.fanOn = !d.fanOn
	case "mode":
		d.fanManual = !d.fanManual
	}
}

// SetFanDuration sets the fan run time in minutes; values outside 1..60 are ignored.
func (d *Device) SetFanDuration(minutes int) bool {
	if minutes < 1 || minutes > 60 {
		return false
	}
	d.mu.Lock()
	d.fanDuration = time.Duration(minutes) * time.Minute
	d.mu.Unlock()
	return true
}

// SetFanInterval sets the fan cycle in hours; values outside 1..24 are ignored.
func (d *Device) SetFanInterval(hours int) bool {
	if hours < 1 || hours > 24 {
		return false
	}
	d.mu.Lock()
	d.fanInterval = time.Duration(hours) * time.Hour
	d.mu.Unlock()
	return true
}

// SetRecordInterval sets the sampling period in minutes; values outside 1..60 are ignored.
func (d *Device) SetRecordInterval(minutes int) bool {
	if minutes < 1 || minutes > 60 {
		return false
	}
	d.mu.Lock()
	d.recordInterval = time.Duration(minutes) * time.Minute
	d.mu.Unlock()
	return true
}

func (d *Device) SetSetpoint(v float64) {
	d.mu.Lock()
	d.setpoint = v
	d.controlFog()
	d.mu.Unlock()
}

func round1(v float64) float64 {
	return math.Round(v*decimalScale) / decimalScale
}
