package background

import (
	"context"
	"sort"
	"time"

	"marketplace/internal/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const ratingReconcileJob = "rating-reconcile"

// JobScheduler runs periodic maintenance jobs.
type JobScheduler struct {
	scheduler gocron.Scheduler
	ratings   services.RatingAggregator
	logger    *zap.Logger
	jobs      map[string]gocron.Job // fixed after NewJobScheduler
}

// NewJobScheduler registers the rating reconciler. A non-positive interval disables it.
func NewJobScheduler(ratings services.RatingAggregator, interval time.Duration, logger *zap.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	js := &JobScheduler{
		scheduler: scheduler,
		ratings:   ratings,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
	}

	if interval > 0 {
		job, err := scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(js.reconcileRatings, context.Background()),
			gocron.WithName(ratingReconcileJob),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, err
		}
		js.jobs[ratingReconcileJob] = job
	}

	logger.Info("registered background jobs", zap.Int("count", len(js.jobs)))
	return js, nil
}

func (js *JobScheduler) Start() {
	js.logger.Info("starting background job scheduler")
	js.scheduler.Start()
}

func (js *JobScheduler) Stop() error {
	js.logger.Info("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

// reconcileRatings repairs ratings whose post-commit recompute was lost.
func (js *JobScheduler) reconcileRatings(ctx context.Context) error {
	start := time.Now()
	done, err := js.ratings.RecomputeAll(ctx)
	if err != nil {
		js.logger.Error("rating reconciliation failed", zap.Int("recomputed", done), zap.Error(err))
		return err
	}
	js.logger.Info("rating reconciliation completed",
		zap.Int("recomputed", done),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() map[string]interface{} {
	names := make([]string, 0, len(js.jobs))
	for name := range js.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	return map[string]interface{}{
		"total_jobs": len(js.jobs),
		"jobs":       names,
	}
}
