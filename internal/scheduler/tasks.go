package scheduler

import "github.com/hibiken/asynq"

// Sweep task types. Both are tenant fan-outs driven by the worker; the tasks
// themselves carry no payload.
const (
	TaskAutomationTimeTick = "automation.time_tick"
	TaskRedistributeSweep  = "distribution.redistribute_sweep"
)

func NewAutomationTimeTickTask() *asynq.Task {
	return asynq.NewTask(TaskAutomationTimeTick, nil)
}

func NewRedistributeSweepTask() *asynq.Task {
	return asynq.NewTask(TaskRedistributeSweep, nil)
}
