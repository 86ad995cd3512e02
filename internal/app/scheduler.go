/**
 * @description
 * Cron scheduler setup for the background snapshot refresher.
 */
package app

import (
	"context"
	"log"
	"strings"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	schedule string
}

// NewScheduler creates a new scheduler instance. An empty schedule disables
// the refresher.
func NewScheduler(jobs *Jobs, schedule string) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))
	return &Scheduler{
		cron:     c,
		jobs:     jobs,
		schedule: strings.TrimSpace(schedule),
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if s.schedule == "" {
		log.Printf("Scheduler: no snapshot refresh schedule configured, refresher disabled")
		return
	}

	if _, err := s.cron.AddFunc(s.schedule, s.jobs.RefreshSnapshots); err != nil {
		log.Printf("WARN: Scheduler: failed to schedule snapshot refresh job: %v", err)
	} else {
		log.Printf("Scheduler: scheduled snapshot refresh job, schedule=%q", s.schedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
