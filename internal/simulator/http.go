package simulator

import (
	"net/http"
	"strconv"

	"monotub_dashboard/internal/device"
	"monotub_dashboard/internal/logger"

	"github.com/gin-gonic/gin"
)

type historyResponse struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Handler exposes a Device over the firmware HTTP API.
type Handler struct {
	dev *Device
	log *logger.Logger
}

func NewHandler(dev *Device, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{dev: dev, log: log}
}

// InitRoutes registers the firmware endpoints.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(device.PathData, h.data)
	router.GET(device.PathHistory, h.history)
	router.POST(device.PathFanControl, h.fanControl)
	router.POST(device.PathDeleteData, h.deleteData)
	router.POST(device.PathConfig, h.config)
	router.POST(device.PathStorageConfig, h.storageConfig)
	return router
}

func (h *Handler) data(c *gin.Context) {
	c.JSON(http.StatusOK, h.dev.Status())
}

func (h *Handler) history(c *gin.Context) {
	rng := c.DefaultQuery("range", "day")
	series := c.DefaultQuery("type", device.SeriesTemperature)
	labels, values := h.dev.History(h.dev.now(), rng, series)
	c.JSON(http.StatusOK, historyResponse{Labels: labels, Values: values})
}

func (h *Handler) fanControl(c *gin.Context) {
	if action := c.Query("action"); action != "" {
		h.dev.FanAction(action)
		h.log.Debugw("sim_fan_action", "action", action)
	}
	if v, ok := intForm(c, "duration"); ok {
		h.dev.SetFanDuration(v)
	}
	if v, ok := intForm(c, "interval"); ok {
		h.dev.SetFanInterval(v)
	}
	c.Status(http.StatusOK)
}

func (h *Handler) deleteData(c *gin.Context) {
	if !h.dev.DeleteData() {
		c.String(http.StatusNotFound, "No data file")
		return
	}
	c.String(http.StatusOK, "OK")
}

func (h *Handler) config(c *gin.Context) {
	if raw, ok := c.GetPostForm("setpoint"); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			h.dev.SetSetpoint(v)
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) storageConfig(c *gin.Context) {
	if v, ok := intForm(c, "interval"); ok {
		h.dev.SetRecordInterval(v)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func intForm(c *gin.Context, key string) (int, bool) {
	raw, ok := c.GetPostForm(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
