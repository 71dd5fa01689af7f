package handlers

import (
	"context"
	"errors"
	"net/http"

	"monotub_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errInvalidBodyPref = "invalid body: "
	errDeviceFailed    = "device request failed"
	errDeviceTimeout   = "device did not answer in time"
	errUnavailable     = "dashboard is shutting down"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondDashboardError maps a dashboard error to a status code: rejected
// input is the caller's fault, anything else came from the device.
func (h *Handler) respondDashboardError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	switch {
	case errors.Is(err, service.ErrUnknownChart),
		errors.Is(err, service.ErrEmptyRange),
		errors.Is(err, service.ErrInvalidSetting),
		errors.Is(err, service.ErrDeleteNotConfirmed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSchedulerStopped):
		h.logAndJSONError(c, http.StatusServiceUnavailable, errUnavailable, logKey, err, kv...)
	case errors.Is(err, context.DeadlineExceeded):
		h.logAndJSONError(c, http.StatusGatewayTimeout, errDeviceTimeout, logKey, err, kv...)
	default:
		h.logAndJSONError(c, http.StatusBadGateway, errDeviceFailed+": "+err.Error(), logKey, err, kv...)
	}
}

// respondCommand answers a device command. A command that took effect but
// whose follow-up refresh failed is still a success, flagged with a warning
// next to the stale view.
func (h *Handler) respondCommand(c *gin.Context, err error, extra gin.H, logKey string, kv ...interface{}) {
	switch {
	case err == nil:
		h.respondWithView(c, extra)
	case errors.Is(err, service.ErrRefreshAfterCommand):
		if h.log != nil {
			h.log.Warnw(logKey, append([]interface{}{"err", err}, kv...)...)
		}
		if extra == nil {
			extra = gin.H{}
		}
		extra["warning"] = err.Error()
		h.respondWithView(c, extra)
	default:
		h.respondDashboardError(c, logKey, err, kv...)
	}
}

// respondWithView answers with a status and the current view.
func (h *Handler) respondWithView(c *gin.Context, extra gin.H) {
	resp := gin.H{"status": statusOK}
	for k, v := range extra {
		resp[k] = v
	}
	resp["view"] = h.services.Dashboard.View()
	c.JSON(http.StatusOK, resp)
}

// RangeRequest selects the history range of one chart.
type RangeRequest struct {
	// Range understood by the device, e.g. day, week, month.
	Range string `json:"range" binding:"required" example:"week"`
}

// FanSettingsRequest configures the automatic fan cycle.
type FanSettingsRequest struct {
	// Run time in minutes (1-60).
	Duration int `json:"duration" binding:"required" example:"5"`
	// Cycle period in hours (1-24).
	Interval int `json:"interval" binding:"required" example:"4"`
}

// SetpointRequest sets the humidity setpoint.
type SetpointRequest struct {
	// Target relative humidity in percent (0-100).
	Setpoint *float64 `json:"setpoint" binding:"required" example:"90"`
}

// StorageIntervalRequest sets how often the device stores a history sample.
type StorageIntervalRequest struct {
	// Minutes between samples (1-60).
	Interval int `json:"interval" binding:"required" example:"5"`
}

// DeleteRequest carries the operator's answer to the delete prompt.
type DeleteRequest struct {
	Confirm bool `json:"confirm" example:"true"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Current dashboard view
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  service.View
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/dashboard [get]
// @Security     BearerAuth
func (h *Handler) getView(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Dashboard.View())
}

// @Summary      Refresh status
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/dashboard/status/refresh [post]
// @Security     BearerAuth
func (h *Handler) refreshStatus(c *gin.Context) {
	if err := h.services.Dashboard.UpdateStatus(c.Request.Context()); err != nil {
		h.respondDashboardError(c, "status_refresh_failed", err)
		return
	}
	h.respondWithView(c, nil)
}

// @Summary      Refresh both charts
// @Description  Each chart is refreshed independently; a failure of one does not undo the other.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/dashboard/charts/refresh [post]
// @Security     BearerAuth
func (h *Handler) refreshCharts(c *gin.Context) {
	if err := h.services.Dashboard.UpdateCharts(c.Request.Context()); err != nil {
		h.respondDashboardError(c, "charts_refresh_failed", err)
		return
	}
	h.respondWithView(c, nil)
}

// @Summary      Change chart range
// @Description  Sets the range of one chart and refreshes both charts.
// @Tags         dashboard
// @Accept       json
// @Produce      json
// @Param        chart  path  string        true  "Chart id"  Enums(tempChart, humChart)
// @Param        body   body  RangeRequest  true  "Range payload"
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/dashboard/charts/{chart}/range [post]
// @Security     BearerAuth
func (h *Handler) changeRange(c *gin.Context) {
	var req RangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	chart := c.Param("chart")
	if err := h.services.Dashboard.ChangeTimeRange(c.Request.Context(), chart, req.Range); err != nil {
		h.respondDashboardError(c, "range_change_failed", err, "chart", chart, "range", req.Range)
		return
	}
	h.respondWithView(c, gin.H{"chart": chart, "range": req.Range})
}

// @Summary      Fan action
// @Description  Forwards the action to the device; the firmware knows "toggle" (power) and "mode" (manual/auto).
// @Description  If the action applied but the status refresh failed, the answer is 200 with a "warning" and the stale view.
// @Tags         controls
// @Produce      json
// @Param        action  path  string  true  "Fan action"  example(toggle)
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/fan/{action} [post]
// @Security     BearerAuth
func (h *Handler) fanAction(c *gin.Context) {
	action := c.Param("action")
	err := h.services.Dashboard.UpdateFan(c.Request.Context(), action)
	h.respondCommand(c, err, gin.H{"action": action}, "fan_action_failed", "action", action)
}

// @Summary      Fan cycle settings
// @Tags         controls
// @Accept       json
// @Produce      json
// @Param        body  body  FanSettingsRequest  true  "Fan cycle"
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/fan/settings [post]
// @Security     BearerAuth
func (h *Handler) configureFan(c *gin.Context) {
	var req FanSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	fs := service.FanSettings{DurationMinutes: req.Duration, IntervalHours: req.Interval}
	err := h.services.Dashboard.ConfigureFan(c.Request.Context(), fs)
	h.respondCommand(c, err, nil, "fan_settings_failed")
}

// @Summary      Set humidity setpoint
// @Tags         controls
// @Accept       json
// @Produce      json
// @Param        body  body  SetpointRequest  true  "Setpoint"
// @Success      200  {object}  map[string]interface{}  "status, view"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/setpoint [post]
// @Security     BearerAuth
func (h *Handler) setSetpoint(c *gin.Context) {
	var req SetpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	err := h.services.Dashboard.SetSetpoint(c.Request.Context(), *req.Setpoint)
	h.respondCommand(c, err, nil, "setpoint_failed", "setpoint", *req.Setpoint)
}

// @Summary      Set storage interval
// @Tags         controls
// @Accept       json
// @Produce      json
// @Param        body  body  StorageIntervalRequest  true  "Interval"
// @Success      200  {object}  map[string]interface{}  "status, interval"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/storage/interval [post]
// @Security     BearerAuth
func (h *Handler) setStorageInterval(c *gin.Context) {
	var req StorageIntervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Dashboard.SetStorageInterval(c.Request.Context(), req.Interval); err != nil {
		h.respondDashboardError(c, "storage_interval_failed", err, "interval", req.Interval)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK, "interval": req.Interval})
}

// @Summary      Delete all history
// @Description  Requires {"confirm": true}; without it nothing is sent to the device.
// @Tags         controls
// @Accept       json
// @Produce      json
// @Param        body  body  DeleteRequest  true  "Confirmation"
// @Success      200  {object}  map[string]interface{}  "status, message, view"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/data/delete [post]
// @Security     BearerAuth
func (h *Handler) deleteData(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	confirm := func(string) bool { return req.Confirm }
	err := h.services.Dashboard.ConfirmDelete(c.Request.Context(), confirm)
	if errors.Is(err, service.ErrDeleteNotConfirmed) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "prompt": service.DeletePrompt})
		return
	}
	h.respondCommand(c, err, gin.H{"message": service.MsgDataDeleted}, "delete_data_failed")
}
