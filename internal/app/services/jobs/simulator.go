package jobs

import (
	"context"
	"time"

	"github.com/studyflow-app/studyflow-core/internal/app/domain/job"
	"github.com/studyflow-app/studyflow-core/pkg/logger"
)

const (
	// DefaultSimulationDuration is the end-to-end runtime of one
	// simulated job when the caller does not override it.
	DefaultSimulationDuration = 3 * time.Second

	// DefaultResultURL is attached to completed jobs that have no real
	// artifact behind them.
	DefaultResultURL = "https://www.w3.org/WAI/ER/tests/xhtml/testfiles/resources/pdf/dummy.pdf"

	simulationSteps = 5
)

// Simulator drives a queued job through its lifecycle by patching it
// through the store: processing at 10%, five progress steps capped at 90%,
// then done at 100%. It never produces a failed state; failures are only
// ever assigned by an external caller.
type Simulator struct {
	svc      *Service
	duration time.Duration
	log      *logger.Logger
}

// NewSimulator creates a simulator over the job store. A non-positive
// duration selects the default.
func NewSimulator(svc *Service, duration time.Duration, log *logger.Logger) *Simulator {
	if duration <= 0 {
		duration = DefaultSimulationDuration
	}
	if log == nil {
		log = logger.NewDefault("job-simulator")
	}
	return &Simulator{svc: svc, duration: duration, log: log}
}

// Run executes the full lifecycle for one job, blocking until the job is
// done or ctx is cancelled. On cancellation the job is left in whatever
// state it last reached.
func (sim *Simulator) Run(ctx context.Context, jobID string) error {
	status := job.StatusProcessing
	progress := 10
	if err := sim.svc.UpdateJob(ctx, jobID, job.Patch{Status: &status, Progress: &progress}); err != nil {
		return err
	}

	step := sim.duration / simulationSteps
	for i := 1; i <= simulationSteps; i++ {
		select {
		case <-ctx.Done():
			sim.log.Debug("simulation cancelled", "job_id", jobID)
			return ctx.Err()
		case <-time.After(step):
		}

		p := i * 20
		if p > 90 {
			p = 90
		}
		if err := sim.svc.UpdateJob(ctx, jobID, job.Patch{Progress: &p}); err != nil {
			return err
		}
	}

	done := job.StatusDone
	full := 100
	url := DefaultResultURL
	if err := sim.svc.UpdateJob(ctx, jobID, job.Patch{
		Status:    &done,
		Progress:  &full,
		ResultURL: &url,
	}); err != nil {
		return err
	}
	sim.log.Info("simulation complete", "job_id", jobID)
	return nil
}
