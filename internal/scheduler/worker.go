package scheduler

import (
	"context"
	"fmt"

	"crm_routing_backend/internal/automation/domain"
	automationrepo "crm_routing_backend/internal/automation/repository"
	automationsvc "crm_routing_backend/internal/automation/service"
	distributiondomain "crm_routing_backend/internal/distribution/domain"
	distributionrepo "crm_routing_backend/internal/distribution/repository"
	distributionsvc "crm_routing_backend/internal/distribution/service"
	"crm_routing_backend/platform/config"
	"crm_routing_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// tenantConcurrency bounds the sweep fan-out so one tick cannot saturate the
// database across a large tenant base.
const tenantConcurrency = 4

const sweepLeadLimit = 500

// Worker consumes the sweep tasks. Tenants are processed independently; a
// failing tenant is logged and never fails the task, since asynq retrying the
// whole sweep would re-run tenants that already succeeded.
type Worker struct {
	server           *asynq.Server
	mux              *asynq.ServeMux
	automation       *automationsvc.Service
	automationRepo   *automationrepo.Repository
	distribution     *distributionsvc.Service
	distributionRepo *distributionrepo.Repository
	log              *logger.Logger
}

// NewWorker builds the asynq server with both sweep handlers registered.
func NewWorker(
	cfg config.SchedulerConfig,
	automation *automationsvc.Service,
	automationRepo *automationrepo.Repository,
	distribution *distributionsvc.Service,
	distributionRepo *distributionrepo.Repository,
	log *logger.Logger,
) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:           server,
		mux:              mux,
		automation:       automation,
		automationRepo:   automationRepo,
		distribution:     distribution,
		distributionRepo: distributionRepo,
		log:              log,
	}

	mux.HandleFunc(TaskAutomationTimeTick, w.handleAutomationTimeTick)
	mux.HandleFunc(TaskRedistributeSweep, w.handleRedistributeSweep)

	return w, nil
}

// Run blocks until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleAutomationTimeTick runs time-based rules against every open lead of
// every tenant that has such rules.
func (w *Worker) handleAutomationTimeTick(ctx context.Context, _ *asynq.Task) error {
	tenants, err := w.automationRepo.ListTenantsWithTimeBasedRules(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(tenantConcurrency)
	for _, tenantID := range tenants {
		g.Go(func() error {
			w.tickTenant(ctx, tenantID)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

func (w *Worker) tickTenant(ctx context.Context, tenantID uuid.UUID) {
	leads, err := w.automationRepo.ListOpenLeadIDs(ctx, tenantID, sweepLeadLimit)
	if err != nil {
		w.log.Error("time tick lead listing failed", "tenant_id", tenantID.String(), "error", err.Error())
		return
	}

	for _, leadID := range leads {
		_, err := w.automation.Trigger(ctx, automationsvc.TriggerEvent{
			TenantID:    tenantID,
			TriggerType: domain.TriggerTimeBased,
			LeadID:      &leadID,
		})
		if err != nil {
			w.log.Error("time tick trigger failed",
				"tenant_id", tenantID.String(),
				"lead_id", leadID.String(),
				"error", err.Error(),
			)
		}
	}
}

// handleRedistributeSweep re-routes open leads whose responsible agent was
// deactivated since assignment.
func (w *Worker) handleRedistributeSweep(ctx context.Context, _ *asynq.Task) error {
	tenants, err := w.distributionRepo.ListTenantsWithInactiveAssignees(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(tenantConcurrency)
	for _, tenantID := range tenants {
		g.Go(func() error {
			w.sweepTenant(ctx, tenantID)
			return nil
		})
	}
	_ = g.Wait()

	return nil
}

func (w *Worker) sweepTenant(ctx context.Context, tenantID uuid.UUID) {
	leads, err := w.distributionRepo.ListLeadsWithInactiveAssignee(ctx, tenantID, sweepLeadLimit)
	if err != nil {
		w.log.Error("redistribute sweep lead listing failed", "tenant_id", tenantID.String(), "error", err.Error())
		return
	}

	for _, leadID := range leads {
		result, err := w.distribution.Distribute(ctx, distributionsvc.DistributeInput{
			LeadID:           leadID,
			TenantID:         tenantID,
			TriggerSource:    distributiondomain.TriggerAutoRedistribution,
			IsRedistribution: true,
		})
		if err != nil {
			w.log.Error("redistribute sweep failed",
				"tenant_id", tenantID.String(),
				"lead_id", leadID.String(),
				"error", err.Error(),
			)
			continue
		}
		if result.Outcome != distributionsvc.OutcomeAssigned {
			w.log.Info("redistribute sweep skipped lead",
				"tenant_id", tenantID.String(),
				"lead_id", leadID.String(),
				"outcome", string(result.Outcome),
			)
		}
	}
}
