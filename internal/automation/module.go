// Package automation provides the rule engine bounded context module.
package automation

import (
	"crm_routing_backend/internal/automation/handler"
	"crm_routing_backend/internal/automation/repository"
	"crm_routing_backend/internal/automation/service"
	"crm_routing_backend/internal/events"
	apphttp "crm_routing_backend/internal/http"
	"crm_routing_backend/internal/messaging"
	"crm_routing_backend/platform/logger"
	"crm_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the automation domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates a new automation module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger, client *messaging.Client) *Module {
	repo := repository.New(pool)
	evaluator := service.NewEvaluator(repo, nil)
	executor := service.NewExecutor(&channelResolver{repo: repo, client: client}, repo, repo, log)
	svc := service.NewService(repo, repo, evaluator, executor, bus, log, nil)
	h := handler.New(svc, repo, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "automation"
}

// Service exposes the rule engine for the scheduler's time tick.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the read side for the scheduler's tenant fan-out.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Engine-key authenticated invocation endpoint
	invoke := ctx.Invoke.Group("/automation")
	invoke.POST("/trigger", m.handler.HandleTrigger)

	// Admin rule management surface
	admin := ctx.Admin.Group("/automation")
	admin.POST("/rules", m.handler.HandleCreateRule)
	admin.GET("/rules", m.handler.HandleListRules)
	admin.GET("/rules/:ruleId", m.handler.HandleGetRule)
	admin.PUT("/rules/:ruleId", m.handler.HandleUpdateRule)
	admin.DELETE("/rules/:ruleId", m.handler.HandleDeleteRule)
	admin.GET("/logs", m.handler.HandleListLogs)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
