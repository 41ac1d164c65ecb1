// Package main provides the escalation sweeper for timed-out approval steps.
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/approvion/pkg/engine"
	"github.com/robfig/cron/v3"
)

// Escalator periodically sweeps requests waiting on approvals and escalates
// the ones whose step timeout elapsed. The engine re-checks every condition
// under the request lock, so overlapping sweeps are harmless.
type Escalator struct {
	logger *slog.Logger
	engine *engine.Engine
	cron   *cron.Cron
	now    func() time.Time
}

func NewEscalator(logger *slog.Logger, eng *engine.Engine) *Escalator {
	return &Escalator{
		logger: logger,
		engine: eng,
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start schedules the sweep and blocks until the context is cancelled.
func (e *Escalator) Start(ctx context.Context, schedule string) error {
	if _, err := e.cron.AddFunc(schedule, func() {
		e.Sweep(ctx)
	}); err != nil {
		return err
	}

	e.cron.Start()
	e.logger.InfoContext(ctx, "Escalation sweep scheduled", "schedule", schedule)

	<-ctx.Done()

	stopped := e.cron.Stop()
	<-stopped.Done()

	return nil
}

// Sweep runs one escalation pass over every request in review.
func (e *Escalator) Sweep(ctx context.Context) {
	requests, err := e.engine.ListInReview(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to list requests in review", "error", err)

		return
	}

	escalated := 0

	for _, request := range requests {
		ok, err := e.engine.TimeoutCheck(ctx, request.ID, e.now())
		if err != nil {
			e.logger.ErrorContext(ctx, "Escalation check failed",
				"request_id", request.ID,
				"error", err,
			)

			continue
		}

		if ok {
			escalated++

			e.logger.InfoContext(ctx, "Escalated request",
				"request_id", request.ID,
				"workflow_type", request.WorkflowType,
			)
		}
	}

	e.logger.DebugContext(ctx, "Escalation sweep finished",
		"checked", len(requests),
		"escalated", escalated,
	)
}
