package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/0xPuncker/andon-notifier/pkg/calendar"
	"github.com/0xPuncker/andon-notifier/pkg/types"
	"github.com/sirupsen/logrus"
)

type SchedulerConfig struct {
	Interval    time.Duration
	Location    *time.Location
	SendTimeout time.Duration
}

type JobInfo struct {
	Name        string `json:"name"`
	Task        string `json:"task"`
	FireHour    int    `json:"fire_hour"`
	Description string `json:"description"`
	Running     bool   `json:"running"`
}

// Scheduler owns one Runner per enabled job and starts or stops them together.
type Scheduler struct {
	cfg     SchedulerConfig
	store   JobStore
	logger  *logrus.Logger
	tasks   map[string]Sender
	jobs    map[string]types.Job
	runners map[string]*Runner
	mu      sync.RWMutex
	started bool
}

func NewScheduler(cfg SchedulerConfig, jobStore JobStore, logger *logrus.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		cfg:     cfg,
		store:   jobStore,
		logger:  logger,
		tasks:   make(map[string]Sender),
		jobs:    make(map[string]types.Job),
		runners: make(map[string]*Runner),
	}
}

func (s *Scheduler) RegisterTask(name string, task Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = task
}

func (s *Scheduler) LoadPredefinedJobs(jobs []types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cannot load jobs while scheduler is running")
	}

	s.jobs = make(map[string]types.Job)
	s.runners = make(map[string]*Runner)

	for _, job := range jobs {
		if !job.Enabled {
			s.logger.Infof("Skipping disabled job: %s", job.Name)
			continue
		}
		if _, dup := s.runners[job.Name]; dup {
			return fmt.Errorf("job %s defined more than once", job.Name)
		}

		task, exists := s.tasks[job.TaskName]
		if !exists {
			return fmt.Errorf("task %s not registered", job.TaskName)
		}

		schedule, err := calendar.NewDailySchedule(job.FireHour, s.cfg.Location)
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", job.Name, err)
		}

		s.jobs[job.Name] = job
		s.runners[job.Name] = NewRunner(RunnerConfig{
			JobName:     job.Name,
			Interval:    s.cfg.Interval,
			Schedule:    schedule,
			SendTimeout: s.cfg.SendTimeout,
		}, s.store, task, s.logger)

		s.logger.WithFields(logrus.Fields{
			"job_name":    job.Name,
			"task":        job.TaskName,
			"fire_hour":   job.FireHour,
			"description": job.Description,
		}).Info("Job scheduled successfully")
	}

	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	var started []*Runner
	for _, name := range s.sortedNames() {
		r := s.runners[name]
		if err := r.Start(ctx); err != nil {
			for _, prev := range started {
				prev.Stop()
			}
			return fmt.Errorf("failed to start job %s: %w", name, err)
		}
		started = append(started, r)
	}

	s.started = true
	s.logger.WithField("jobs", len(s.runners)).Info("Scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	for _, r := range s.runners {
		r.Stop()
	}
	s.started = false
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, name := range s.sortedNames() {
		job := s.jobs[name]
		jobs = append(jobs, JobInfo{
			Name:        job.Name,
			Task:        job.TaskName,
			FireHour:    job.FireHour,
			Description: job.Description,
			Running:     s.runners[name].IsRunning(),
		})
	}
	return jobs
}

// NextRun is the fire time a successful run of the job would schedule from now.
func (s *Scheduler) NextRun(jobName string, now time.Time) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runners[jobName]
	if !ok {
		return time.Time{}, fmt.Errorf("job %s not found", jobName)
	}
	return r.cfg.Schedule.Next(now), nil
}

func (s *Scheduler) sortedNames() []string {
	names := make([]string, 0, len(s.runners))
	for name := range s.runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
