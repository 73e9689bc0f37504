// Package mutation runs optimistic edits: apply locally, commit remotely,
// and restore the exact prior state if the commit fails.
package mutation

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/internal/metrics"
	"github.com/d60-Lab/sagesync/internal/report"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

// Mutation describes one optimistic edit. Mutate and Revert run on the
// caller's goroutine; Revert must restore the values captured before Mutate.
type Mutation struct {
	Name     string
	Mutate   func()
	Commit   func(ctx context.Context) error
	Revert   func()
	Fallback string
	// OnCommitted runs after a successful commit, e.g. to reconcile with the
	// server's response.
	OnCommitted func()
}

// Controller 乐观更新执行器
type Controller struct {
	reporter report.Reporter
	log      *zap.Logger
}

func NewController(reporter report.Reporter) *Controller {
	if reporter == nil {
		reporter = report.Nop
	}
	return &Controller{reporter: reporter, log: logger.Named("mutation")}
}

// Apply runs m. On commit failure the edit is reverted, the error is reported
// once and returned. No per-item lock is held: two overlapping mutations on
// the same item each revert to what they captured.
func (c *Controller) Apply(ctx context.Context, m Mutation) error {
	if m.Mutate != nil {
		m.Mutate()
	}
	err := m.Commit(ctx)
	if err != nil {
		if m.Revert != nil {
			m.Revert()
		}
		metrics.RecordMutation(m.Name, metrics.OutcomeReverted)
		c.log.Info("mutation reverted", zap.String("name", m.Name), zap.Error(err))
		c.reporter.Report(ctx, err, m.Fallback)
		return err
	}
	metrics.RecordMutation(m.Name, metrics.OutcomeCommitted)
	if m.OnCommitted != nil {
		m.OnCommitted()
	}
	return nil
}

// Confirm commits first and applies locally only on success. Used where the
// server assigns the result (ids, totals).
func (c *Controller) Confirm(ctx context.Context, name, fallback string, commit func(ctx context.Context) error) error {
	if err := commit(ctx); err != nil {
		metrics.RecordMutation(name, metrics.OutcomeFailed)
		c.log.Info("confirmed write failed", zap.String("name", name), zap.Error(err))
		c.reporter.Report(ctx, err, fallback)
		return err
	}
	metrics.RecordMutation(name, metrics.OutcomeCommitted)
	return nil
}
