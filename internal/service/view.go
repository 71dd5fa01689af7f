package service

import (
	"slices"
	"strconv"
	"time"

	"monotub_dashboard/internal/models"
)

// Chart identifiers, matching the element ids of the page.
const (
	ChartTemperature = "tempChart"
	ChartHumidity    = "humChart"
)

// Display strings for boolean actuator state.
const (
	displayOn     = "ON"
	displayOff    = "OFF"
	displayManual = "Manual"
	displayAuto   = "Auto"
)

// ChartOptions is the visual configuration shared by both charts.
type ChartOptions struct {
	Responsive            bool `json:"responsive"`
	MaintainAspectRatio   bool `json:"maintainAspectRatio"`
	TickMinRotation       int  `json:"tickMinRotation"`
	TickMaxRotation       int  `json:"tickMaxRotation"`
	TooltipTitleFromLabel bool `json:"tooltipTitleFromLabel"`
}

func commonChartOptions() ChartOptions {
	return ChartOptions{
		Responsive:            true,
		MaintainAspectRatio:   false,
		TickMinRotation:       45,
		TickMaxRotation:       45,
		TooltipTitleFromLabel: true,
	}
}

// ChartView is one line chart as the page renders it. Revision increases on
// every data replacement; the page re-renders when it changes.
type ChartView struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Label       string       `json:"label"`
	BorderColor string       `json:"borderColor"`
	Tension     float64      `json:"tension"`
	Options     ChartOptions `json:"options"`
	Range       string       `json:"range"`
	Labels      []string     `json:"labels"`
	Values      []float64    `json:"values"`
	Revision    uint64       `json:"revision"`
	UpdatedAt   time.Time    `json:"updatedAt,omitempty"`
}

func newChart(id, label, color, rng string) ChartView {
	return ChartView{
		ID:          id,
		Type:        "line",
		Label:       label,
		BorderColor: color,
		Tension:     0.1,
		Options:     commonChartOptions(),
		Range:       rng,
		Labels:      []string{},
		Values:      []float64{},
	}
}

func (c ChartView) clone() ChartView {
	c.Labels = slices.Clone(c.Labels)
	c.Values = slices.Clone(c.Values)
	return c
}

// StatusView holds the status fields exactly as displayed. Keys follow the page element ids.
type StatusView struct {
	Temperature    string    `json:"temperature"`
	Humidity       string    `json:"humidity"`
	FogStatus      string    `json:"fogStatus"`
	FanPower       string    `json:"fanPower"`
	FanMode        string    `json:"fanMode"`
	Setpoint       string    `json:"setpoint"`
	FanPowerActive bool      `json:"fanPowerBtnActive"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
	Stale          bool      `json:"stale"`
}

// View is a consistent snapshot of everything the page shows.
type View struct {
	CurrentTime string            `json:"currentTime"`
	Status      StatusView        `json:"status"`
	TempChart   ChartView         `json:"tempChart"`
	HumChart    ChartView         `json:"humChart"`
	Errors      map[Target]string `json:"errors,omitempty"`
}

func (v View) clone() View {
	v.TempChart = v.TempChart.clone()
	v.HumChart = v.HumChart.clone()
	if v.Errors != nil {
		errs := make(map[Target]string, len(v.Errors))
		for k, e := range v.Errors {
			errs[k] = e
		}
		v.Errors = errs
	}
	return v
}

// formatStatus renders a device status the way the page displays it.
func formatStatus(st models.DeviceStatus, at time.Time) StatusView {
	return StatusView{
		Temperature:    formatOneDecimal(st.Temperature),
		Humidity:       formatOneDecimal(st.Humidity),
		FogStatus:      onOff(st.FogState),
		FanPower:       onOff(st.FanState),
		FanMode:        manualAuto(st.FanManual),
		Setpoint:       formatOneDecimal(st.Setpoint),
		FanPowerActive: st.FanState,
		UpdatedAt:      at,
	}
}

func formatOneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func onOff(b bool) string {
	if b {
		return displayOn
	}
	return displayOff
}

func manualAuto(manual bool) string {
	if manual {
		return displayManual
	}
	return displayAuto
}
