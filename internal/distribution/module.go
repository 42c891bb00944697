// Package distribution provides the lead distribution bounded context module.
package distribution

import (
	"crm_routing_backend/internal/distribution/handler"
	"crm_routing_backend/internal/distribution/repository"
	"crm_routing_backend/internal/distribution/service"
	"crm_routing_backend/internal/events"
	apphttp "crm_routing_backend/internal/http"
	"crm_routing_backend/platform/logger"
	"crm_routing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the distribution domain module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates a new distribution module with all dependencies wired.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	resolver := service.NewResolver(repo, nil)
	selector := service.NewSelector(repo, nil)
	svc := service.New(repo, repo, repo, resolver, selector, repo, repo, bus, log)
	h := handler.New(svc, repo, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "distribution"
}

// Service exposes the orchestrator for the scheduler's redistribution sweep.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository exposes the read side for the scheduler's redistribution sweep.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Engine-key authenticated invocation endpoint
	invoke := ctx.Invoke.Group("/distribution")
	invoke.POST("/distribute", m.handler.HandleDistribute)

	// Admin configuration surface
	admin := ctx.Admin.Group("/distribution")
	admin.POST("/configs", m.handler.HandleCreateConfig)
	admin.GET("/configs", m.handler.HandleListConfigs)
	admin.PUT("/configs/:configId", m.handler.HandleUpdateConfig)
	admin.DELETE("/configs/:configId", m.handler.HandleDeleteConfig)
	admin.PUT("/availability", m.handler.HandleUpsertAvailability)
	admin.GET("/availability", m.handler.HandleListAvailability)
	admin.POST("/availability/:agentId/pause", m.handler.HandlePauseAgent)
	admin.POST("/availability/:agentId/resume", m.handler.HandleResumeAgent)
	admin.GET("/history", m.handler.HandleListHistory)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
