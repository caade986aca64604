package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/0xPuncker/andon-notifier/internal/config"
	"github.com/0xPuncker/andon-notifier/internal/cron"
	"github.com/0xPuncker/andon-notifier/internal/store"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// JobStore is the read and repair surface the API exposes over job records.
type JobStore interface {
	Get(ctx context.Context, jobName string) (*store.JobRecord, error)
	List(ctx context.Context) ([]store.JobRecord, error)
	Reset(ctx context.Context, jobName string, nextRun, now time.Time) error
}

type Handler struct {
	store     JobStore
	scheduler *cron.Scheduler
	logger    *logrus.Logger
	config    *config.Config
	now       func() time.Time
}

type JobResponse struct {
	store.JobRecord
	Scheduled bool `json:"scheduled"`
	Running   bool `json:"running"`
	FireHour  *int `json:"fire_hour,omitempty"`
}

func NewHandler(jobStore JobStore, scheduler *cron.Scheduler, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		store:     jobStore,
		scheduler: scheduler,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"environment":       h.config.Environment,
		"scheduler_running": h.scheduler.IsRunning(),
	})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}

	scheduled := h.scheduledJobs()
	jobs := make([]JobResponse, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, newJobResponse(rec, scheduled))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":              jobs,
		"scheduler_running": h.scheduler.IsRunning(),
	})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobName := mux.Vars(r)["name"]

	rec, err := h.store.Get(r.Context(), jobName)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newJobResponse(*rec, h.scheduledJobs()))
}

// ResetJob returns a failed or stuck job to pending. The next run is the job's
// next fire time, or immediately when the job is not configured on this instance.
func (h *Handler) ResetJob(w http.ResponseWriter, r *http.Request) {
	jobName := mux.Vars(r)["name"]
	now := h.now()

	nextRun, err := h.scheduler.NextRun(jobName, now)
	if err != nil {
		nextRun = now
	}

	if err := h.store.Reset(r.Context(), jobName, nextRun, now); err != nil {
		h.handleStoreError(w, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_name": jobName,
		"next_run": nextRun.Format(time.RFC3339),
	}).Warn("Job reset to pending")

	rec, err := h.store.Get(r.Context(), jobName)
	if err != nil {
		h.handleStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(*rec, h.scheduledJobs()))
}

func (h *Handler) scheduledJobs() map[string]cron.JobInfo {
	jobs := make(map[string]cron.JobInfo)
	for _, job := range h.scheduler.ListJobs() {
		jobs[job.Name] = job
	}
	return jobs
}

func newJobResponse(rec store.JobRecord, scheduled map[string]cron.JobInfo) JobResponse {
	resp := JobResponse{JobRecord: rec}
	if info, ok := scheduled[rec.JobName]; ok {
		hour := info.FireHour
		resp.Scheduled = true
		resp.Running = info.Running
		resp.FireHour = &hour
	}
	return resp
}

func (h *Handler) handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		h.handleError(w, err, http.StatusNotFound)
	case errors.Is(err, store.ErrNotResettable):
		h.handleError(w, err, http.StatusConflict)
	default:
		h.handleError(w, err, http.StatusInternalServerError)
	}
}

func (h *Handler) handleError(w http.ResponseWriter, err error, status int) {
	h.logger.WithFields(logrus.Fields{
		"error":  err.Error(),
		"status": status,
	}).Error("Request failed")

	writeJSON(w, status, map[string]string{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
