// Tenantvault - Tenant Data Protection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package services

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/tenantvault/internal/logging"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// PeriodicService runs a Task on a fixed interval until its context ends.
type PeriodicService struct {
	name       string
	interval   time.Duration
	task       Task
	runOnStart bool

	runs     atomic.Int64
	failures atomic.Int64
}

// NewPeriodicService creates a service running task every interval.
// With runOnStart the first run happens immediately instead of after one
// interval.
func NewPeriodicService(name string, interval time.Duration, runOnStart bool, task Task) *PeriodicService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PeriodicService{
		name:       name,
		interval:   interval,
		task:       task,
		runOnStart: runOnStart,
	}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	if p.runOnStart {
		p.run(ctx)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

func (p *PeriodicService) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	p.runs.Add(1)

	log := logging.WithComponent(p.name)
	err := p.task(ctx)
	if err != nil && ctx.Err() == nil {
		p.failures.Add(1)
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Periodic task failed")
		return
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Periodic task finished")
}

// Runs returns how many times the task was started.
func (p *PeriodicService) Runs() int64 {
	return p.runs.Load()
}

// Failures returns how many runs returned an error.
func (p *PeriodicService) Failures() int64 {
	return p.failures.Load()
}

func (p *PeriodicService) String() string {
	return p.name
}
