package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Oussamaghaouti/irrig/internal/models"
	"github.com/Oussamaghaouti/irrig/internal/service"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK       = "ok"
	statusAccepted = "accepted"

	errRefreshFailed   = "channel read failed"
	errInvalidBodyPref = "invalid body: "
	errSyncBusy        = "a sync is already in flight"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for setting mode.
type modeRequest struct {
	Mode string `json:"mode" binding:"required"` // auto | manual (or the raw flags "0" | "1")
}

// SetModeRequest is an exported model for Swagger docs of the setMode payload.
type SetModeRequest struct {
	// Mode to set. Allowed: auto, manual, 0, 1
	Mode string `json:"mode" example:"manual"`
}

// parseModeFlag maps the request value onto the channel's mode flag.
func parseModeFlag(s string) (string, bool) {
	switch s {
	case "auto", models.ModeAuto:
		return models.ModeAuto, true
	case "manual", models.ModeManual:
		return models.ModeManual, true
	}
	return "", false
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

// @Summary      Get controller state
// @Description  Latest confirmed channel snapshot plus the controller's in-flight state
// @Tags         pump
// @Produce      json
// @Success      200  {object}  models.ControllerStatus
// @Router       /api/v1/pump/state [get]
func (h *Handler) pumpState(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.PumpSync.Status())
}

// @Summary      Switch pump mode
// @Description  Starts a background write-verify cycle; poll /pump/state or /ws for progress
// @Tags         pump
// @Accept       json
// @Produce      json
// @Param        body  body   SetModeRequest  true  "Mode payload"
// @Success      202   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/pump/mode [post]
func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	mode, ok := parseModeFlag(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrInvalidMode.Error()})
		return
	}

	switch err := h.services.PumpSync.SetMode(mode); {
	case errors.Is(err, service.ErrSyncInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": errSyncBusy})
	case err != nil:
		h.logAndJSONError(c, http.StatusBadRequest, err.Error(), "pump_set_mode_failed", err, "mode", req.Mode)
	default:
		// The cycle can run for up to 40 s; it is accepted, not completed.
		c.JSON(http.StatusAccepted, gin.H{"status": statusAccepted, "mode": req.Mode})
	}
}

// @Summary      Toggle the pump relay
// @Description  Only available in manual mode; runs a background write-verify cycle
// @Tags         pump
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/pump/toggle [post]
func (h *Handler) togglePump(c *gin.Context) {
	switch err := h.services.PumpSync.TogglePump(); {
	case errors.Is(err, service.ErrSyncInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": errSyncBusy})
	case errors.Is(err, service.ErrNotManual):
		c.JSON(http.StatusConflict, gin.H{"error": service.ErrNotManual.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, err.Error(), "pump_toggle_failed", err)
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": statusAccepted})
	}
}

// @Summary      Refresh the snapshot now
// @Description  On-demand channel read; rejected while a read or write is in flight
// @Tags         pump
// @Produce      json
// @Success      200  {object}  models.ControllerStatus
// @Failure      409  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/pump/refresh [post]
func (h *Handler) refreshNow(c *gin.Context) {
	switch err := h.services.PumpSync.Refresh(c.Request.Context()); {
	case errors.Is(err, service.ErrSyncInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": errSyncBusy})
	case err != nil:
		h.logAndJSONError(c, http.StatusBadGateway, errRefreshFailed, "pump_refresh_failed", err)
	default:
		c.JSON(http.StatusOK, h.services.PumpSync.Status())
	}
}
