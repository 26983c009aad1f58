// Package cron runs periodic background fetches for registered workspaces.
package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("auto-fetch job not found")

// DefaultRunTimeout bounds a single fetch.
const DefaultRunTimeout = 2 * time.Minute

// Fetcher runs fetch_git for a workspace. commands.Commands satisfies it,
// so jobs honor the configured backend mode.
type Fetcher interface {
	FetchGit(ctx context.Context, workspaceID string) error
}

// Job fetches one workspace on a schedule.
type Job struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspaceId"`
	Schedule    string     `json:"schedule"` // "@every 10m" or a 6-field cron expression
	Enabled     bool       `json:"enabled"`
	CreatedAt   time.Time  `json:"createdAt"`
	NextRunAt   *time.Time `json:"nextRunAt,omitempty"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	LastResult  string     `json:"lastResult,omitempty"`

	entryID cron.EntryID
}

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is usable as a job schedule.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// Scheduler owns the auto-fetch jobs and persists them to a JSON file.
type Scheduler struct {
	cron      *cron.Cron
	jobs      map[string]*Job
	jobsMu    sync.RWMutex
	stateFile string
	fetcher   Fetcher
	timeout   time.Duration
}

// NewScheduler creates a scheduler and loads jobs saved in stateFile.
func NewScheduler(stateFile string, fetcher Fetcher) *Scheduler {
	s := &Scheduler{
		cron:      cron.New(cron.WithParser(parser)),
		jobs:      make(map[string]*Job),
		stateFile: stateFile,
		fetcher:   fetcher,
		timeout:   DefaultRunTimeout,
	}
	s.loadJobs()
	return s
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Auto-fetch scheduler started")
}

// Stop waits for running fetches to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Auto-fetch scheduler stopped")
}

// AddJob registers a job. An empty schedule is rejected.
func (s *Scheduler) AddJob(job *Job) error {
	if job.WorkspaceID == "" {
		return errors.New("workspaceId is required")
	}
	if err := ValidateSchedule(job.Schedule); err != nil {
		return err
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.CreatedAt = time.Now()

	if job.Enabled {
		if err := s.scheduleJob(job); err != nil {
			return err
		}
	}
	s.jobs[job.ID] = job
	s.saveJobs()
	return nil
}

// UpdateJob changes the schedule and/or enabled flag. Nil leaves a field as is.
func (s *Scheduler) UpdateJob(id string, schedule *string, enabled *bool) error {
	if schedule != nil {
		if err := ValidateSchedule(*schedule); err != nil {
			return err
		}
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.entryID != 0 {
		s.cron.Remove(job.entryID)
		job.entryID = 0
	}
	if schedule != nil {
		job.Schedule = *schedule
	}
	if enabled != nil {
		job.Enabled = *enabled
	}
	if job.Enabled {
		if err := s.scheduleJob(job); err != nil {
			return err
		}
	}
	s.saveJobs()
	return nil
}

func (s *Scheduler) RemoveJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.entryID != 0 {
		s.cron.Remove(job.entryID)
	}
	delete(s.jobs, id)
	s.saveJobs()
	return nil
}

// RunJob fetches immediately, outside the schedule.
func (s *Scheduler) RunJob(ctx context.Context, id string) error {
	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	s.jobsMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return s.executeJob(ctx, job)
}

// ListJobs returns copies of the jobs ordered by creation time.
func (s *Scheduler) ListJobs(includeDisabled bool) []Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if !includeDisabled && !job.Enabled {
			continue
		}
		job.NextRunAt = s.nextRun(job, time.Now())
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs
}

// nextRun reports when an enabled job fires next. Before Start the cron
// entry has no time yet, so the schedule is evaluated from now.
func (s *Scheduler) nextRun(job *Job, now time.Time) *time.Time {
	if !job.Enabled {
		return nil
	}
	if job.entryID != 0 {
		if next := s.cron.Entry(job.entryID).Next; !next.IsZero() {
			return &next
		}
	}
	sched, err := parser.Parse(job.Schedule)
	if err != nil {
		return nil
	}
	next := sched.Next(now)
	return &next
}

func (s *Scheduler) GetJob(id string) (Job, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// scheduleJob must be called with jobsMu held.
func (s *Scheduler) scheduleJob(job *Job) error {
	id := job.ID
	entryID, err := s.cron.AddFunc(job.Schedule, func() {
		s.jobsMu.RLock()
		j, ok := s.jobs[id]
		s.jobsMu.RUnlock()
		if ok {
			s.executeJob(context.Background(), j)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling job %s: %w", id, err)
	}
	job.entryID = entryID
	return nil
}

func (s *Scheduler) executeJob(ctx context.Context, job *Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Debug().Str("jobId", job.ID).Str("workspaceId", job.WorkspaceID).Msg("Running auto-fetch")
	var err error
	if s.fetcher != nil {
		err = s.fetcher.FetchGit(ctx, job.WorkspaceID)
	}

	now := time.Now()
	s.jobsMu.Lock()
	job.LastRunAt = &now
	if err != nil {
		job.LastResult = "error: " + err.Error()
	} else {
		job.LastResult = "success"
	}
	s.saveJobs()
	s.jobsMu.Unlock()

	if err != nil {
		log.Warn().Err(err).Str("workspaceId", job.WorkspaceID).Msg("Auto-fetch failed")
	}
	return err
}

func (s *Scheduler) loadJobs() {
	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		return
	}

	var jobs []*Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		log.Warn().Err(err).Msg("Failed to load auto-fetch jobs")
		return
	}
	for _, job := range jobs {
		if job.Enabled {
			if err := s.scheduleJob(job); err != nil {
				log.Warn().Err(err).Str("jobId", job.ID).Msg("Skipping unschedulable job")
				job.Enabled = false
			}
		}
		s.jobs[job.ID] = job
	}
	log.Debug().Int("count", len(jobs)).Msg("Loaded auto-fetch jobs")
}

// saveJobs must be called with jobsMu held.
func (s *Scheduler) saveJobs() {
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })

	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal auto-fetch jobs")
		return
	}
	os.MkdirAll(filepath.Dir(s.stateFile), 0755)
	if err := os.WriteFile(s.stateFile, data, 0644); err != nil {
		log.Error().Err(err).Msg("Failed to save auto-fetch jobs")
	}
}

// Status summarizes the scheduler for the status endpoint and CLI.
func (s *Scheduler) Status() map[string]any {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	enabled := 0
	for _, job := range s.jobs {
		if job.Enabled {
			enabled++
		}
	}
	return map[string]any{
		"totalJobs":   len(s.jobs),
		"enabledJobs": enabled,
		"scheduled":   len(s.cron.Entries()),
	}
}
