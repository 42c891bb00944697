// Package scheduler runs the engine's periodic work on asynq: the time-based
// automation tick and the auto-redistribution sweep.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"crm_routing_backend/platform/config"
	"crm_routing_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Periodic registers the recurring sweep tasks with asynq's scheduler.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewPeriodic builds the periodic enqueuer from the scheduler config.
func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	tick := cfg.GetTimeTickInterval()
	if tick <= 0 {
		tick = 5 * time.Minute
	}
	if _, err := scheduler.Register(every(tick), NewAutomationTimeTickTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register time tick: %w", err)
	}

	sweep := cfg.GetRedistributionInterval()
	if sweep <= 0 {
		sweep = 15 * time.Minute
	}
	if _, err := scheduler.Register(every(sweep), NewRedistributeSweepTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register redistribute sweep: %w", err)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run blocks until the context is canceled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
