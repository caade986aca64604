package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xPuncker/andon-notifier/internal/store"
	"github.com/0xPuncker/andon-notifier/pkg/calendar"
	"github.com/0xPuncker/andon-notifier/pkg/utils"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sender performs the side effect of a notification job.
type Sender interface {
	Send(ctx context.Context) error
}

type SenderFunc func(ctx context.Context) error

func (f SenderFunc) Send(ctx context.Context) error {
	return f(ctx)
}

// JobStore is the persistence a Runner needs.
type JobStore interface {
	EnsureJobExists(ctx context.Context, jobName string, nextRun time.Time) (bool, error)
	ClaimIfDue(ctx context.Context, jobName string, now time.Time, initialRun bool) (*store.JobRecord, error)
	MarkSucceeded(ctx context.Context, rec *store.JobRecord, now, nextRun time.Time) error
	MarkFailed(ctx context.Context, rec *store.JobRecord, now time.Time, cause error) error
	Get(ctx context.Context, jobName string) (*store.JobRecord, error)
}

type RunnerConfig struct {
	JobName     string
	Interval    time.Duration
	Schedule    *calendar.DailySchedule
	SendTimeout time.Duration
}

// Runner drives one named job: a forced attempt at start, then one attempt per
// interval tick. Overlapping attempts are excluded by the store's claim only.
type Runner struct {
	cfg    RunnerConfig
	store  JobStore
	sender Sender
	logger *logrus.Logger
	now    func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	started bool
}

func NewRunner(cfg RunnerConfig, jobStore JobStore, sender Sender, logger *logrus.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		store:  jobStore,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

func (r *Runner) Name() string {
	return r.cfg.JobName
}

// Start makes sure the job row exists, schedules the interval ticks and kicks off
// the forced first attempt in the background.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner %s already started", r.cfg.JobName)
	}

	created, err := r.store.EnsureJobExists(ctx, r.cfg.JobName, r.cfg.Schedule.Next(r.now()))
	if err != nil {
		return err
	}
	if created {
		r.logger.WithField("job_name", r.cfg.JobName).Info("Created job record")
	} else {
		r.warnIfStuck(ctx)
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(r.logger))))
	c.Schedule(cron.Every(r.cfg.Interval), cron.FuncJob(func() {
		r.CheckAndExecuteJob(ctx, false)
	}))
	c.Start()

	r.cron = c
	r.started = true

	r.logger.WithFields(logrus.Fields{
		"job_name":  r.cfg.JobName,
		"interval":  r.cfg.Interval.String(),
		"fire_hour": r.cfg.Schedule.Hour,
		"timezone":  r.cfg.Schedule.Location.String(),
	}).Info("Job runner started")

	go r.CheckAndExecuteJob(ctx, true)

	return nil
}

// Stop cancels future ticks. A pass already in flight is left to finish on its own.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	r.cron.Stop()
	r.started = false
	r.logger.WithField("job_name", r.cfg.JobName).Info("Job runner stopped")
}

func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// CheckAndExecuteJob is one attempt: claim the job if due and run the sender.
// Errors end at this boundary; they are logged and recorded, never returned.
func (r *Runner) CheckAndExecuteJob(ctx context.Context, initialRun bool) {
	log := r.logger.WithFields(logrus.Fields{
		"job_name":    r.cfg.JobName,
		"initial_run": initialRun,
	})

	rec, err := r.store.ClaimIfDue(ctx, r.cfg.JobName, r.now(), initialRun)
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to claim job")
		return
	}
	if rec == nil {
		log.Debug("Job not due or already claimed")
		return
	}

	log = log.WithField("run_id", rec.RunID())
	log.Info("Starting job execution")

	start := time.Now()
	if err := r.send(ctx); err != nil {
		log.WithFields(logrus.Fields{
			"error":    err.Error(),
			"duration": utils.FormatElapsed(time.Since(start)),
		}).Error("Job execution failed")

		if err := r.store.MarkFailed(ctx, rec, r.now(), err); err != nil {
			log.WithField("error", err.Error()).Error("Failed to record job failure")
		}
		return
	}

	finished := r.now()
	nextRun := r.cfg.Schedule.Next(finished)
	if err := r.store.MarkSucceeded(ctx, rec, finished, nextRun); err != nil {
		log.WithField("error", err.Error()).Error("Failed to record job success")
		return
	}

	log.WithFields(logrus.Fields{
		"duration": utils.FormatElapsed(time.Since(start)),
		"next_run": nextRun.Format(time.RFC3339),
	}).Info("Job execution completed successfully")
}

func (r *Runner) send(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sender panicked: %v", p)
		}
	}()

	if r.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SendTimeout)
		defer cancel()
	}
	return r.sender.Send(ctx)
}

func (r *Runner) warnIfStuck(ctx context.Context) {
	rec, err := r.store.Get(ctx, r.cfg.JobName)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"job_name": r.cfg.JobName,
			"error":    err.Error(),
		}).Warn("Failed to read job record")
		return
	}

	if rec.Status == store.StatusPending {
		return
	}

	fields := logrus.Fields{
		"job_name":   r.cfg.JobName,
		"status":     rec.Status,
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.LastError != nil {
		fields["last_error"] = *rec.LastError
	}
	r.logger.WithFields(fields).Warn("Job is not pending and will not run until it is reset")
}
