package journal

import (
	"context"
	"time"

	"github.com/marmos91/stevedore/pkg/prepare"
)

// WrapStep returns a preparation step that records its outcome in the
// journal after running. A nil journal returns the step unchanged.
func (j *Journal) WrapStep(step prepare.Step) prepare.Step {
	if j == nil {
		return step
	}
	return &journaledStep{inner: step, journal: j}
}

type journaledStep struct {
	inner   prepare.Step
	journal *Journal
}

func (s *journaledStep) Name() string {
	return s.inner.Name()
}

func (s *journaledStep) Run(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Run(ctx)
	s.journal.RecordStep(ctx, s.inner.Name(), time.Since(start), err)
	return err
}
