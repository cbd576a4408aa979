package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"homehub/internal/iot"
	"homehub/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) enhancedUnavailable(c *gin.Context) bool {
	if h.controller == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Enhanced features not available"))
		return true
	}
	return false
}

// GetIoTDevices returns the registry summary for the dashboard.
func (h *Handler) GetIoTDevices(c *gin.Context) {
	if h.enhancedUnavailable(c) {
		return
	}

	devices, err := h.db.GetEnabledDevices()
	if err != nil {
		log.Printf("[API] Failed to load devices: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to load devices"))
		return
	}

	summary := models.DeviceSummary{
		TotalDevices: len(devices),
		Devices:      devices,
	}
	for _, device := range devices {
		if device.Status == models.StatusOnline {
			summary.OnlineDevices++
			summary.TotalPowerWatts += device.PowerWatts
		} else {
			summary.OfflineDevices++
		}
	}

	c.JSON(http.StatusOK, models.SuccessResponse(summary))
}

// ControlIoTDevice dispatches a control action to a device.
func (h *Handler) ControlIoTDevice(c *gin.Context) {
	if h.enhancedUnavailable(c) {
		return
	}

	var req struct {
		DeviceID   string                 `json:"device_id"`
		Action     string                 `json:"action"`
		Parameters map[string]interface{} `json:"parameters"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request"))
		return
	}
	if req.DeviceID == "" || req.Action == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("device_id and action are required"))
		return
	}

	result, err := h.controller.Control(req.DeviceID, req.Action, req.Parameters)
	if err != nil {
		switch {
		case errors.Is(err, iot.ErrDeviceNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse("Device not found"))
		case errors.Is(err, iot.ErrDeviceDisabled):
			c.JSON(http.StatusConflict, models.ErrorResponse("Device is disabled"))
		case errors.Is(err, iot.ErrUnsupportedAction):
			c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
		default:
			log.Printf("[API] Control failed for %s: %v", req.DeviceID, err)
			c.JSON(http.StatusInternalServerError, models.ErrorResponse(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(result))
}

// GetAutomationRules returns the rules summary.
func (h *Handler) GetAutomationRules(c *gin.Context) {
	if h.enhancedUnavailable(c) {
		return
	}

	rules, err := h.db.GetAllRules()
	if err != nil {
		log.Printf("[API] Failed to load rules: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to load automation rules"))
		return
	}

	summary := models.AutomationSummary{
		TotalRules: len(rules),
		Rules:      rules,
	}
	for _, rule := range rules {
		if rule.Enabled {
			summary.EnabledRules++
		}
		summary.TotalExecutions += rule.ExecutionCount
	}

	c.JSON(http.StatusOK, models.SuccessResponse(summary))
}

// GetEnergyReport aggregates energy use over a day window (default 7).
func (h *Handler) GetEnergyReport(c *gin.Context) {
	if h.energy == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Enhanced features not available"))
		return
	}

	days := 7
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 365 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid days parameter"))
			return
		}
		days = parsed
	}

	report, err := h.energy.Report(days, h.config.Energy.Currency)
	if err != nil {
		log.Printf("[API] Energy report failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to build energy report"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(report))
}

// Admin device CRUD

func (h *Handler) GetAdminDevices(c *gin.Context) {
	devices, err := h.db.GetAllDevices()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to load devices"))
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse(devices))
}

type deviceRequest struct {
	DeviceID            string   `json:"device_id" binding:"required"`
	Name                string   `json:"name" binding:"required"`
	Type                string   `json:"type" binding:"required"`
	Brand               string   `json:"brand"`
	Model               string   `json:"model"`
	Room                string   `json:"room"`
	IPAddress           string   `json:"ip_address"`
	MACAddress          string   `json:"mac_address"`
	Capabilities        []string `json:"capabilities"`
	RatedWatts          float64  `json:"rated_watts"`
	AutomationPotential string   `json:"automation_potential"`
	SetupNotes          string   `json:"setup_notes"`
	Enabled             *bool    `json:"enabled"`
}

func (h *Handler) CreateDevice(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request: "+err.Error()))
		return
	}

	existing, err := h.db.GetDeviceByDeviceID(req.DeviceID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to check device"))
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse("Device ID already exists"))
		return
	}

	device := models.Device{
		DeviceID:            req.DeviceID,
		Name:                req.Name,
		Type:                req.Type,
		Brand:               req.Brand,
		Model:               req.Model,
		Room:                req.Room,
		IPAddress:           req.IPAddress,
		MACAddress:          req.MACAddress,
		Status:              models.StatusOffline,
		PowerWatts:          0.5,
		AutomationPotential: req.AutomationPotential,
		SetupNotes:          req.SetupNotes,
		Enabled:             true,
		LastSeen:            time.Now(),
	}
	if req.Enabled != nil {
		device.Enabled = *req.Enabled
	}
	device.SetCapabilityList(req.Capabilities)
	device.SetStateMap(map[string]interface{}{
		"power":       "off",
		"rated_watts": req.RatedWatts,
	})

	if err := h.db.CreateDevice(&device); err != nil {
		log.Printf("[API] Failed to create device: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to create device"))
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse(device))
}

func (h *Handler) UpdateDevice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid device ID"))
		return
	}

	device, err := h.db.GetDevice(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse("Device not found"))
		return
	}

	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request: "+err.Error()))
		return
	}

	device.Name = req.Name
	device.Type = req.Type
	device.Brand = req.Brand
	device.Model = req.Model
	device.Room = req.Room
	device.IPAddress = req.IPAddress
	device.MACAddress = req.MACAddress
	device.AutomationPotential = req.AutomationPotential
	device.SetupNotes = req.SetupNotes
	if req.Capabilities != nil {
		device.SetCapabilityList(req.Capabilities)
	}
	if req.Enabled != nil {
		device.Enabled = *req.Enabled
	}
	if req.RatedWatts > 0 {
		state := device.StateMap()
		state["rated_watts"] = req.RatedWatts
		device.SetStateMap(state)
	}

	if err := h.db.UpdateDevice(device); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to update device"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(device))
}

func (h *Handler) DeleteDevice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid device ID"))
		return
	}

	if err := h.db.DeleteDevice(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to delete device"))
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse("Device deleted"))
}

// Admin automation rule CRUD

type ruleRequest struct {
	RuleID            string                 `json:"rule_id" binding:"required"`
	Name              string                 `json:"name" binding:"required"`
	Description       string                 `json:"description"`
	TriggerType       string                 `json:"trigger_type" binding:"required"`
	TriggerConditions map[string]interface{} `json:"trigger_conditions"`
	Actions           []models.RuleAction    `json:"actions"`
	Enabled           *bool                  `json:"enabled"`
}

func validTriggerType(t string) bool {
	return t == iot.TriggerTime || t == iot.TriggerSensor || t == iot.TriggerManual
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request: "+err.Error()))
		return
	}
	if !validTriggerType(req.TriggerType) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid trigger type"))
		return
	}
	if len(req.Actions) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("At least one action is required"))
		return
	}

	existing, err := h.db.GetRuleByRuleID(req.RuleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to check rule"))
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse("Rule ID already exists"))
		return
	}

	rule := models.AutomationRule{
		RuleID:      req.RuleID,
		Name:        req.Name,
		Description: req.Description,
		TriggerType: req.TriggerType,
		Enabled:     true,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	rule.SetConditionMap(req.TriggerConditions)
	rule.SetActionList(req.Actions)

	if err := h.db.CreateRule(&rule); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to create rule"))
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse(rule))
}

func (h *Handler) UpdateRule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid rule ID"))
		return
	}

	rule, err := h.db.GetRule(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse("Rule not found"))
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid request: "+err.Error()))
		return
	}
	if !validTriggerType(req.TriggerType) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid trigger type"))
		return
	}

	rule.Name = req.Name
	rule.Description = req.Description
	rule.TriggerType = req.TriggerType
	if req.TriggerConditions != nil {
		rule.SetConditionMap(req.TriggerConditions)
	}
	if req.Actions != nil {
		rule.SetActionList(req.Actions)
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.db.UpdateRule(rule); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to update rule"))
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse(rule))
}

func (h *Handler) DeleteRule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid rule ID"))
		return
	}

	if err := h.db.DeleteRule(uint(id)); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("Failed to delete rule"))
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse("Rule deleted"))
}

// ExecuteRule runs a rule immediately, regardless of its trigger.
func (h *Handler) ExecuteRule(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("Automation engine not available"))
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse("Invalid rule ID"))
		return
	}

	rule, err := h.db.GetRule(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse("Rule not found"))
		return
	}

	if err := h.engine.Execute(rule); err != nil {
		log.Printf("[API] Manual rule execution failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse("Rule executed"))
}
