package handler

import (
	"net/http"
	"strconv"

	"crm_routing_backend/internal/distribution/domain"
	"crm_routing_backend/internal/distribution/repository"
	"crm_routing_backend/internal/distribution/service"
	"crm_routing_backend/internal/distribution/transport"
	"crm_routing_backend/platform/httpkit"
	"crm_routing_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
	errInvalidID      = "invalid id"
)

// Handler handles distribution HTTP requests.
type Handler struct {
	service *service.Service
	repo    *repository.Repository
	val     *validator.Validator
}

// New creates a new distribution handler.
func New(svc *service.Service, repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{service: svc, repo: repo, val: val}
}

// HandleDistribute routes one lead to an agent.
// POST /api/v1/distribution/distribute
func (h *Handler) HandleDistribute(c *gin.Context) {
	var req transport.DistributeRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Distribute(c.Request.Context(), service.DistributeInput{
		LeadID:           req.LeadID,
		TenantID:         req.OrganizationID,
		TriggerSource:    domain.TriggerSource(req.TriggerSource),
		IsRedistribution: req.IsRedistribution,
		FromAgent:        req.FromUserID,
		TeamID:           req.TeamID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.DistributeResponse{Success: true, Message: result.Message}
	if result.Outcome == service.OutcomeAssigned {
		resp.Agent = result.AgentName
		resp.AgentUserID = result.AgentID.String()
		resp.Method = string(result.Method)
	}

	httpkit.OK(c, resp)
}

// ---- Admin: distribution configs ----

// HandleCreateConfig creates a distribution config.
// POST /api/v1/admin/distribution/configs
func (h *Handler) HandleCreateConfig(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.ConfigRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	config := configFromRequest(req)
	config.ID = uuid.New()
	config.TenantID = identity.TenantID()

	if err := h.repo.CreateConfig(c.Request.Context(), config); httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, transport.ToConfigResponse(*config))
}

// HandleListConfigs lists a tenant's distribution configs.
// GET /api/v1/admin/distribution/configs
func (h *Handler) HandleListConfigs(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	configs, err := h.repo.ListConfigs(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]transport.ConfigResponse, 0, len(configs))
	for _, config := range configs {
		responses = append(responses, transport.ToConfigResponse(config))
	}

	httpkit.OK(c, responses)
}

// HandleUpdateConfig updates a distribution config.
// PUT /api/v1/admin/distribution/configs/:configId
func (h *Handler) HandleUpdateConfig(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	configID, ok := h.parseID(c, c.Param("configId"))
	if !ok {
		return
	}

	var req transport.ConfigRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	config := configFromRequest(req)
	config.ID = configID
	config.TenantID = identity.TenantID()

	if err := h.repo.UpdateConfig(c.Request.Context(), config); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToConfigResponse(*config))
}

// HandleDeleteConfig deletes a distribution config.
// DELETE /api/v1/admin/distribution/configs/:configId
func (h *Handler) HandleDeleteConfig(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	configID, ok := h.parseID(c, c.Param("configId"))
	if !ok {
		return
	}

	if err := h.repo.DeleteConfig(c.Request.Context(), configID, identity.TenantID()); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// ---- Admin: agent availability ----

// HandleUpsertAvailability creates or replaces an agent's availability.
// PUT /api/v1/admin/distribution/availability
func (h *Handler) HandleUpsertAvailability(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.AvailabilityRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	row := domain.AgentAvailability{
		TenantID:       identity.TenantID(),
		AgentID:        req.AgentID,
		IsActive:       req.IsActive,
		MaxCapacity:    req.MaxCapacity,
		PriorityWeight: req.PriorityWeight,
		WorkingHours:   workingHoursFromRequest(req.WorkingHours),
	}

	if err := h.repo.UpsertAvailability(c.Request.Context(), row); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToAvailabilityResponse(row))
}

// HandleListAvailability lists the tenant's full agent roster with load.
// GET /api/v1/admin/distribution/availability
func (h *Handler) HandleListAvailability(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	rows, err := h.repo.ListAvailabilityAll(c.Request.Context(), identity.TenantID(), nil)
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]transport.AvailabilityResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, transport.ToAvailabilityResponse(row))
	}

	httpkit.OK(c, responses)
}

// HandlePauseAgent pauses an agent, optionally until a timestamp.
// POST /api/v1/admin/distribution/availability/:agentId/pause
func (h *Handler) HandlePauseAgent(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	agentID, ok := h.parseID(c, c.Param("agentId"))
	if !ok {
		return
	}

	var req transport.PauseRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	if err := h.repo.SetPause(c.Request.Context(), identity.TenantID(), agentID, true, req.PauseUntil); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleResumeAgent clears an agent's pause.
// POST /api/v1/admin/distribution/availability/:agentId/resume
func (h *Handler) HandleResumeAgent(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	agentID, ok := h.parseID(c, c.Param("agentId"))
	if !ok {
		return
	}

	if err := h.repo.SetPause(c.Request.Context(), identity.TenantID(), agentID, false, nil); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// ---- Admin: assignment history ----

// HandleListHistory lists the tenant's assignment ledger, newest first.
// GET /api/v1/admin/distribution/history
func (h *Handler) HandleListHistory(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	records, err := h.repo.ListHistory(c.Request.Context(), identity.TenantID(), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]transport.HistoryEntryResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, transport.ToHistoryEntryResponse(record))
	}

	httpkit.OK(c, responses)
}

// ---- helpers ----

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return false
	}
	return true
}

func (h *Handler) parseID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

func configFromRequest(req transport.ConfigRequest) *domain.DistributionConfig {
	return &domain.DistributionConfig{
		SourceType:       domain.SourceType(req.SourceType),
		TeamID:           req.TeamID,
		IsActive:         req.IsActive,
		Method:           domain.Method(req.Method),
		Triggers:         req.Triggers,
		EligibleAgentIDs: req.EligibleAgentIDs,
	}
}

func workingHoursFromRequest(body map[string]transport.DayHoursBody) domain.WorkingHours {
	if len(body) == 0 {
		return nil
	}
	hours := make(domain.WorkingHours, len(body))
	for day, window := range body {
		hours[day] = domain.DayHours{Start: window.Start, End: window.End}
	}
	return hours
}
