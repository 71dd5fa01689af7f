package models

import "time"

// DeviceStatus is the current reading and actuator state reported by the device on /data.
type DeviceStatus struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %RH
	FogState    bool    `json:"fogState"`
	FanState    bool    `json:"fanState"`
	FanManual   bool    `json:"fanManual"`
	Setpoint    float64 `json:"setpoint"` // target humidity used by the device's fog control
}

// StatusSnapshot is the last successfully polled status, persisted so a restarted
// dashboard can show something before the first poll completes.
type StatusSnapshot struct {
	ID     int          `json:"id"`
	Status DeviceStatus `json:"status"`
	// HasSetpoint is false when the device never reported a setpoint;
	// Status.Setpoint is then meaningless.
	HasSetpoint bool      `json:"has_setpoint"`
	ReceivedAt  time.Time `json:"received_at"`
}

// ChartSeries is one /history response. It replaces a chart's data wholesale.
type ChartSeries struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}
