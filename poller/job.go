package poller

import (
	"context"
	"time"

	"github.com/graphops/graphix/config"
)

// Job adapts Poller to schedule.Job: it ticks Round on cfg's polling
// period until ctx is done.
type Job struct {
	Poller *Poller
	Config *config.File
}

func (j *Job) Run(ctx context.Context) error {
	period := j.Config.PollingPeriod()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	if err := j.Poller.Round(ctx, j.Config); err != nil {
		log.Errorw("round failed", "error", err.Error())
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := j.Poller.Round(ctx, j.Config); err != nil {
				log.Errorw("round failed", "error", err.Error())
			}
		}
	}
}

// Params reports the job's configuration for schedule.Scheduler.Jobs()
// operator visibility, satisfying schedule.ParamsProvider.
func (j *Job) Params() map[string]interface{} {
	return map[string]interface{}{
		"pollingPeriodInSeconds": j.Config.PollingPeriodInSeconds,
		"blockChoicePolicy":      j.Config.BlockChoicePolicy,
		"sources":                len(j.Config.Sources),
	}
}
