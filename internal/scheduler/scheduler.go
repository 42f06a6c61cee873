// Package scheduler runs the pivotscope pipeline jobs on cron schedules and
// keeps each job's most recent outcome for the system API.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one schedulable unit of pipeline work
type Job interface {
	Run() error
	Name() string
}

// JobStatus captures a registered job's schedule and most recent outcome
type JobStatus struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	DurationMS float64    `json:"duration_ms,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu     sync.Mutex
	status map[string]*JobStatus
	order  []string // Registration order, for stable status listings
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		log:    log.With().Str("component", "scheduler").Logger(),
		status: make(map[string]*JobStatus),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule (six-field, seconds first;
// "@daily" style descriptors also work)
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.execute(job) }); err != nil {
		return err
	}

	s.mu.Lock()
	s.status[job.Name()] = &JobStatus{Name: job.Name(), Schedule: schedule}
	s.order = append(s.order, job.Name())
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// Status returns every registered job's last outcome in registration order
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		statuses = append(statuses, *s.status[name])
	}
	return statuses
}

// execute runs one job and records its outcome
func (s *Scheduler) execute(job Job) error {
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	started := time.Now()
	err := job.Run()
	elapsed := time.Since(started)

	s.record(job.Name(), started, elapsed, err)

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("duration", elapsed).
			Msg("Job failed")
		return err
	}

	s.log.Debug().Str("job", job.Name()).Dur("duration", elapsed).Msg("Job completed")
	return nil
}

func (s *Scheduler) record(name string, started time.Time, elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.status[name]
	if !ok {
		// RunNow on a job that was never scheduled
		st = &JobStatus{Name: name}
		s.status[name] = st
		s.order = append(s.order, name)
	}

	st.LastRun = &started
	st.DurationMS = float64(elapsed) / float64(time.Millisecond)
	st.LastError = ""
	if err != nil {
		st.LastError = err.Error()
	}
}
