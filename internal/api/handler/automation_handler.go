package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/primebets/advisor/internal/api/dto"
	"github.com/primebets/advisor/internal/automation"
)

// AutomationHandler exposes the automation control surface
type AutomationHandler struct {
	logger  *slog.Logger
	manager *automation.Manager
}

func NewAutomationHandler(deps *Dependencies) *AutomationHandler {
	return &AutomationHandler{
		logger:  deps.Logger,
		manager: deps.Automations,
	}
}

// Status handles GET /api/v1/automations
func (h *AutomationHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, dto.AutomationStatusResponse{Jobs: h.manager.Status()})
}

// StopAll handles POST /api/v1/automations/stop-all
func (h *AutomationHandler) StopAll(c *gin.Context) {
	h.manager.StopAll()
	c.JSON(http.StatusOK, dto.AutomationStatusResponse{Jobs: h.manager.Status()})
}

// RestartAll handles POST /api/v1/automations/restart-all
func (h *AutomationHandler) RestartAll(c *gin.Context) {
	h.manager.RestartAll()
	c.JSON(http.StatusOK, dto.AutomationStatusResponse{Jobs: h.manager.Status()})
}

// Stop handles POST /api/v1/automations/:name/stop
func (h *AutomationHandler) Stop(c *gin.Context) {
	name, ok := h.jobName(c)
	if !ok {
		return
	}

	h.logger.Info("Stopping automation", slog.String("job", name))
	h.manager.Stop(name)
	c.JSON(http.StatusOK, dto.AutomationStatusResponse{Jobs: h.manager.Status()})
}

// Restart handles POST /api/v1/automations/:name/restart
func (h *AutomationHandler) Restart(c *gin.Context) {
	name, ok := h.jobName(c)
	if !ok {
		return
	}

	h.logger.Info("Restarting automation", slog.String("job", name))
	h.manager.Restart(name)
	c.JSON(http.StatusOK, dto.AutomationStatusResponse{Jobs: h.manager.Status()})
}

func (h *AutomationHandler) jobName(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !slices.Contains(automation.JobNames, name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown automation: " + name})
		return "", false
	}
	return name, true
}

// Config handles GET /api/v1/automations/config
func (h *AutomationHandler) Config(c *gin.Context) {
	cfgs, err := h.manager.Config(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to load automation config", err)
		return
	}
	c.JSON(http.StatusOK, cfgs)
}

// UpdateConfig handles PATCH /api/v1/automations/config/:name
func (h *AutomationHandler) UpdateConfig(c *gin.Context) {
	var patch automation.JobPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, h.logger, "Invalid request body", err)
		return
	}

	name := c.Param("name")
	cfg, err := h.manager.UpdateConfig(c.Request.Context(), name, patch)
	if err != nil {
		respondError(c, h.logger, "Failed to update automation config", err)
		return
	}

	h.logger.Info("Automation config updated", slog.String("job", name))
	c.JSON(http.StatusOK, cfg)
}

// ResetConfig handles DELETE /api/v1/automations/config
func (h *AutomationHandler) ResetConfig(c *gin.Context) {
	cfgs, err := h.manager.ResetConfig(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to reset automation config", err)
		return
	}
	c.JSON(http.StatusOK, cfgs)
}
