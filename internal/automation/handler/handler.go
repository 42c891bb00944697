package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crm_routing_backend/internal/automation/domain"
	"crm_routing_backend/internal/automation/repository"
	"crm_routing_backend/internal/automation/service"
	"crm_routing_backend/internal/automation/transport"
	"crm_routing_backend/platform/httpkit"
	"crm_routing_backend/platform/validator"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
	errInvalidID      = "invalid id"
)

// Handler handles automation HTTP requests.
type Handler struct {
	service *service.Service
	repo    *repository.Repository
	val     *validator.Validator
}

// New creates a new automation handler.
func New(svc *service.Service, repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{service: svc, repo: repo, val: val}
}

// HandleTrigger runs the rule engine for one trigger event.
// POST /api/v1/automation/trigger
func (h *Handler) HandleTrigger(c *gin.Context) {
	var req transport.TriggerRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Trigger(c.Request.Context(), service.TriggerEvent{
		TenantID:       req.TriggerData.OrganizationID,
		TriggerType:    domain.TriggerType(req.TriggerType),
		LeadID:         req.TriggerData.LeadID,
		MessageContent: req.TriggerData.MessageContent,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.TriggerResponse{
		Success:        true,
		ProcessedRules: result.RulesProcessed,
	})
}

// ---- Admin: automation rules ----

// HandleCreateRule creates an automation rule.
// POST /api/v1/admin/automation/rules
func (h *Handler) HandleCreateRule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req transport.RuleRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	rule, ok := h.ruleFromRequest(c, req)
	if !ok {
		return
	}
	rule.ID = uuid.New()
	rule.TenantID = identity.TenantID()

	created, err := h.repo.CreateRule(c.Request.Context(), *rule)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, transport.ToRuleResponse(*created))
}

// HandleListRules lists a tenant's automation rules.
// GET /api/v1/admin/automation/rules
func (h *Handler) HandleListRules(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	rules, err := h.repo.ListRules(c.Request.Context(), identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]transport.RuleResponse, 0, len(rules))
	for _, rule := range rules {
		responses = append(responses, transport.ToRuleResponse(rule))
	}

	httpkit.OK(c, responses)
}

// HandleGetRule loads one automation rule.
// GET /api/v1/admin/automation/rules/:ruleId
func (h *Handler) HandleGetRule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ruleID, ok := h.parseID(c, c.Param("ruleId"))
	if !ok {
		return
	}

	rule, err := h.repo.GetRule(c.Request.Context(), ruleID, identity.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToRuleResponse(*rule))
}

// HandleUpdateRule replaces an automation rule's mutable fields.
// PUT /api/v1/admin/automation/rules/:ruleId
func (h *Handler) HandleUpdateRule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ruleID, ok := h.parseID(c, c.Param("ruleId"))
	if !ok {
		return
	}

	var req transport.RuleRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	rule, ok := h.ruleFromRequest(c, req)
	if !ok {
		return
	}
	rule.ID = ruleID
	rule.TenantID = identity.TenantID()

	updated, err := h.repo.UpdateRule(c.Request.Context(), *rule)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToRuleResponse(*updated))
}

// HandleDeleteRule deletes an automation rule. Execution logs are kept.
// DELETE /api/v1/admin/automation/rules/:ruleId
func (h *Handler) HandleDeleteRule(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ruleID, ok := h.parseID(c, c.Param("ruleId"))
	if !ok {
		return
	}

	if err := h.repo.DeleteRule(c.Request.Context(), ruleID, identity.TenantID()); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

// ---- Admin: execution logs ----

// HandleListLogs lists recent rule executions, newest first.
// GET /api/v1/admin/automation/logs?rule_id=&limit=
func (h *Handler) HandleListLogs(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var ruleID *uuid.UUID
	if raw := c.Query("rule_id"); raw != "" {
		id, ok := h.parseID(c, raw)
		if !ok {
			return
		}
		ruleID = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.repo.ListLogs(c.Request.Context(), identity.TenantID(), ruleID, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	responses := make([]transport.LogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, transport.ToLogEntryResponse(entry))
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

// ruleFromRequest decodes the raw condition and action payloads into typed
// variants. Decode failures are client errors, not stored garbage.
func (h *Handler) ruleFromRequest(c *gin.Context, req transport.RuleRequest) (*domain.Rule, bool) {
	conditions, err := domain.DecodeConditions(req.Conditions)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return nil, false
	}
	actions, err := domain.DecodeActions(req.Actions)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return nil, false
	}
	if len(actions) == 0 {
		httpkit.Error(c, http.StatusBadRequest, errValidation, "rule requires at least one action")
		return nil, false
	}

	return &domain.Rule{
		Name:        req.Name,
		TriggerType: domain.TriggerType(req.TriggerType),
		IsActive:    req.IsActive,
		Conditions:  conditions,
		Actions:     actions,
	}, true
}
