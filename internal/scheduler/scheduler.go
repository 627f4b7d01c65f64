// Package scheduler re-executes registered graph snapshots on cron
// schedules. Jobs live in memory only; callers re-register them on process
// restart. Graph documents are never persisted.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/atelier-studio/atelier/pkg/schema"
)

// GraphRunner is the interface the scheduler uses to execute a graph.
// Satisfied by the engine (avoids import cycle).
type GraphRunner interface {
	Execute(ctx context.Context, nodes []schema.Node, edges []schema.Edge) error
}

// Job is a registered schedule: a graph snapshot plus the cron expression
// that drives its re-execution.
type Job struct {
	ID       string
	Label    string
	CronExpr string
	Enabled  bool

	LastRunAt     *time.Time
	NextRunAt     *time.Time
	LastRunStatus string

	graph *schema.Graph
}

// Scheduler ticks every minute and runs registered jobs that are due.
type Scheduler struct {
	runner GraphRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]*Job

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner GraphRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		jobs:     make(map[string]*Job),
		inflight: make(map[string]struct{}),
	}
}

// Register snapshots the graph and schedules it under the given cron
// expression. The snapshot is a deep copy; later edits to the document do
// not affect the job. Returns the job ID.
func (s *Scheduler) Register(label, cronExpr string, graph *schema.Graph) (string, error) {
	next, err := s.CalculateNextRun(cronExpr, time.Now().UTC())
	if err != nil {
		return "", err
	}
	job := &Job{
		ID:        uuid.New().String(),
		Label:     label,
		CronExpr:  cronExpr,
		Enabled:   true,
		NextRunAt: &next,
		graph:     graph.Clone(),
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	s.logger.Info("job registered",
		slog.String("job_id", job.ID),
		slog.String("label", label),
		slog.String("cron", cronExpr),
	)
	return job.ID, nil
}

// Unregister removes a job. Unknown IDs are not an error; an in-flight run
// finishes but is never rescheduled.
func (s *Scheduler) Unregister(jobID string) {
	s.jobsMu.Lock()
	delete(s.jobs, jobID)
	s.jobsMu.Unlock()
}

// SetEnabled pauses or resumes a job without losing its snapshot.
func (s *Scheduler) SetEnabled(jobID string, enabled bool) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "job not found: %s", jobID)
	}
	job.Enabled = enabled
	return nil
}

// Jobs returns a snapshot of all registered jobs, without their graphs.
func (s *Scheduler) Jobs() []Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		j := *job
		j.graph = nil
		out = append(out, j)
	}
	return out
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick checks all enabled jobs and runs those that are due.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, job := range s.due(now) {
		if !s.tryAcquire(job.ID) {
			continue // previous run still going (dedup)
		}
		if err := s.runJob(ctx, job, now); err != nil {
			s.logger.Error("failed to run scheduled job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		s.releaseJob(job.ID)
	}
}

// due returns enabled jobs whose next run time has passed.
func (s *Scheduler) due(now time.Time) []*Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	var out []*Job
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if job.NextRunAt == nil || !job.NextRunAt.After(now) {
			out = append(out, job)
		}
	}
	return out
}

// runJob executes a job's snapshot and updates its timestamps. Each run gets
// a fresh copy so cached results from one run never leak into the next.
func (s *Scheduler) runJob(ctx context.Context, job *Job, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("label", job.Label),
	)

	g := job.graph.Clone()
	err := s.runner.Execute(ctx, g.Nodes, g.Edges)
	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error("scheduled job execution failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.updateJobStatus(job, now, status)
}

func (s *Scheduler) updateJobStatus(job *Job, now time.Time, status string) error {
	nextRun, err := s.CalculateNextRun(job.CronExpr, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", job.ID, err)
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	// The job may have been unregistered while running.
	if _, ok := s.jobs[job.ID]; !ok {
		return nil
	}
	job.LastRunAt = &now
	job.NextRunAt = &nextRun
	job.LastRunStatus = status
	return nil
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
