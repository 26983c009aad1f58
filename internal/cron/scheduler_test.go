package cron

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingFetcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *recordingFetcher) FetchGit(ctx context.Context, workspaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, workspaceID)
	return f.err
}

func (f *recordingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(t *testing.T, fetcher Fetcher) (*Scheduler, string) {
	t.Helper()
	state := filepath.Join(t.TempDir(), "autofetch.json")
	return NewScheduler(state, fetcher), state
}

func TestScheduler_AddJob(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	job := &Job{WorkspaceID: "ws-1", Schedule: "@every 10m", Enabled: true}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if job.ID == "" {
		t.Error("Job ID should be generated")
	}
	if jobs := s.ListJobs(true); len(jobs) != 1 {
		t.Errorf("Expected 1 job, got %d", len(jobs))
	}
}

func TestScheduler_AddJobRejectsBadInput(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	if err := s.AddJob(&Job{Schedule: "@every 1m"}); err == nil {
		t.Error("Expected error for missing workspace id")
	}
	if err := s.AddJob(&Job{WorkspaceID: "ws-1", Schedule: "not a schedule"}); err == nil {
		t.Error("Expected error for invalid schedule")
	}
	if err := s.AddJob(&Job{WorkspaceID: "ws-1", Schedule: ""}); err == nil {
		t.Error("Expected error for empty schedule")
	}
}

func TestScheduler_GetAndRemove(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	job := &Job{WorkspaceID: "ws-1", Schedule: "@every 1h"}
	s.AddJob(job)

	got, ok := s.GetJob(job.ID)
	if !ok || got.WorkspaceID != "ws-1" {
		t.Fatalf("GetJob = %+v, %v", got, ok)
	}
	if err := s.RemoveJob(job.ID); err != nil {
		t.Fatalf("RemoveJob failed: %v", err)
	}
	if _, ok := s.GetJob(job.ID); ok {
		t.Error("Job should be removed")
	}
	if err := s.RemoveJob(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestScheduler_UpdateJob(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	job := &Job{WorkspaceID: "ws-1", Schedule: "@every 1h", Enabled: true}
	s.AddJob(job)

	schedule := "0 */5 * * * *"
	disabled := false
	if err := s.UpdateJob(job.ID, &schedule, &disabled); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	updated, _ := s.GetJob(job.ID)
	if updated.Schedule != schedule || updated.Enabled {
		t.Errorf("Unexpected job after update: %+v", updated)
	}
	if n := len(s.ListJobs(false)); n != 0 {
		t.Errorf("Expected no enabled jobs, got %d", n)
	}

	bad := "every tuesday"
	if err := s.UpdateJob(job.ID, &bad, nil); err == nil {
		t.Error("Expected error for invalid schedule")
	}
	if err := s.UpdateJob("nonexistent", nil, nil); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestScheduler_ListJobs(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	s.AddJob(&Job{WorkspaceID: "ws-1", Schedule: "@every 1m", Enabled: true})
	s.AddJob(&Job{WorkspaceID: "ws-2", Schedule: "@every 1m", Enabled: false})

	enabledOnly := s.ListJobs(false)
	if len(enabledOnly) != 1 {
		t.Fatalf("Expected 1 enabled job, got %d", len(enabledOnly))
	}
	if enabledOnly[0].NextRunAt == nil {
		t.Error("Enabled job should report its next run")
	}
	all := s.ListJobs(true)
	if len(all) != 2 {
		t.Fatalf("Expected 2 total jobs, got %d", len(all))
	}
	for _, j := range all {
		if !j.Enabled && j.NextRunAt != nil {
			t.Errorf("Disabled job %s should have no next run", j.ID)
		}
	}
}

func TestScheduler_NextRunBeforeStart(t *testing.T) {
	s, _ := newTestScheduler(t, nil)

	before := time.Now()
	job := &Job{WorkspaceID: "ws-1", Schedule: "@every 5m", Enabled: true}
	if err := s.AddJob(job); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	jobs := s.ListJobs(false)
	if len(jobs) != 1 || jobs[0].NextRunAt == nil {
		t.Fatalf("Expected a next run for the unstarted scheduler, got %+v", jobs)
	}
	next := *jobs[0].NextRunAt
	if next.Before(before.Add(5*time.Minute - time.Second)) || next.After(time.Now().Add(5*time.Minute+time.Second)) {
		t.Errorf("Next run %v is not five minutes out", next)
	}

	hourly := "0 0 * * * *"
	if err := s.UpdateJob(job.ID, &hourly, nil); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}
	next = *s.ListJobs(false)[0].NextRunAt
	if next.Minute() != 0 || next.Second() != 0 || !next.After(before) {
		t.Errorf("Hourly job next run %v is not on the hour", next)
	}
}

func TestScheduler_PersistsJobs(t *testing.T) {
	s, state := newTestScheduler(t, nil)
	s.AddJob(&Job{WorkspaceID: "ws-1", Schedule: "@every 1m", Enabled: true})

	reloaded := NewScheduler(state, nil)
	jobs := reloaded.ListJobs(true)
	if len(jobs) != 1 || jobs[0].WorkspaceID != "ws-1" {
		t.Fatalf("Reloaded jobs = %+v", jobs)
	}
	if st := reloaded.Status(); st["scheduled"] != 1 {
		t.Errorf("Expected reloaded job to be scheduled, status %v", st)
	}
}

func TestScheduler_JobExecution(t *testing.T) {
	fetcher := &recordingFetcher{}
	s, _ := newTestScheduler(t, fetcher)
	s.Start()
	defer s.Stop()

	if err := s.AddJob(&Job{WorkspaceID: "ws-1", Schedule: "* * * * * *", Enabled: true}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for fetcher.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if fetcher.count() == 0 {
		t.Error("Job should have been executed")
	}
}

func TestScheduler_RunJobManually(t *testing.T) {
	fetcher := &recordingFetcher{err: errors.New("no remote")}
	s, _ := newTestScheduler(t, fetcher)

	job := &Job{WorkspaceID: "ws-9", Schedule: "@every 1h"}
	s.AddJob(job)

	if err := s.RunJob(context.Background(), job.ID); err == nil {
		t.Fatal("Expected fetch error to surface")
	}
	if fetcher.count() != 1 || fetcher.calls[0] != "ws-9" {
		t.Errorf("Unexpected fetch calls: %v", fetcher.calls)
	}
	got, _ := s.GetJob(job.ID)
	if got.LastRunAt == nil || got.LastResult != "error: no remote" {
		t.Errorf("Last run not recorded: %+v", got)
	}

	if err := s.RunJob(context.Background(), "nonexistent"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}

func TestScheduler_Status(t *testing.T) {
	s, _ := newTestScheduler(t, nil)
	s.AddJob(&Job{WorkspaceID: "ws-1", Schedule: "@every 1m", Enabled: true})
	s.AddJob(&Job{WorkspaceID: "ws-2", Schedule: "@every 1m", Enabled: false})

	status := s.Status()
	if status["totalJobs"] != 2 {
		t.Errorf("totalJobs should be 2, got %v", status["totalJobs"])
	}
	if status["enabledJobs"] != 1 {
		t.Errorf("enabledJobs should be 1, got %v", status["enabledJobs"])
	}
}
