// Package prepare implements the ordered startup preparation sequence.
//
// Steps run strictly in order and fail fast: the first failure aborts the
// sequence and surfaces as a StepError naming the step, and later steps do
// not run. Every step is idempotent, so re-running the sequence on unchanged
// inputs is a no-op.
package prepare

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/stevedore/internal/logger"
	"github.com/marmos91/stevedore/pkg/metrics"
)

// Step is a single unit of startup preparation.
type Step interface {
	// Name identifies the step in logs and errors.
	Name() string

	// Run executes the step. Implementations must be idempotent: a second
	// run on unchanged inputs must succeed without side effects.
	Run(ctx context.Context) error
}

// StepError reports a preparation step failure.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("preparation step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes preparation steps strictly in order.
type Runner struct {
	steps   []Step
	metrics metrics.PrepareMetrics
}

// NewRunner creates a Runner over the given steps. Steps run in the order
// they are passed. A nil metrics implementation disables collection.
func NewRunner(m metrics.PrepareMetrics, steps ...Step) *Runner {
	return &Runner{
		steps:   steps,
		metrics: m,
	}
}

// Run executes every step in order, stopping at the first failure.
func (r *Runner) Run(ctx context.Context) error {
	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name(), Err: err}
		}

		logger.InfoCtx(ctx, "Running preparation step", logger.Step(step.Name()))
		start := time.Now()

		err := step.Run(ctx)
		if r.metrics != nil {
			r.metrics.RecordStep(step.Name(), time.Since(start), err)
		}

		if err != nil {
			logger.ErrorCtx(ctx, "Preparation step failed",
				logger.Step(step.Name()),
				logger.Err(err),
				logger.DurationMs(logger.Duration(start)))
			return &StepError{Step: step.Name(), Err: err}
		}

		logger.InfoCtx(ctx, "Preparation step completed",
			logger.Step(step.Name()),
			logger.DurationMs(logger.Duration(start)))
	}

	return nil
}
