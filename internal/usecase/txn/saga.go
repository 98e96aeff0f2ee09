package txn

import "context"

// SagaStep is one unit of a Saga: Execute performs the forward action,
// Compensate (if non-nil) undoes it. Used by the ingest background path to
// pair the vector-store write with its compensating delete (§4.6, §9).
type SagaStep struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga runs a sequence of steps in order; if any step fails, every
// previously executed step's Compensate runs in reverse order. Compensation
// failures are swallowed here (best-effort, logged by the caller) so one
// broken compensation doesn't prevent the others from running.
type Saga struct {
	steps              []SagaStep
	executed           []SagaStep
	compensationErrors []error
}

// NewSaga returns an empty Saga.
func NewSaga() *Saga {
	return &Saga{}
}

// AddStep appends a step to the saga's execution order.
func (s *Saga) AddStep(step SagaStep) {
	s.steps = append(s.steps, step)
}

// Run executes every step in order. On the first failure it compensates
// every step executed so far (in reverse) and returns that failure.
func (s *Saga) Run(ctx context.Context) error {
	for _, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			s.compensateExecuted(ctx)
			return err
		}
		s.executed = append(s.executed, step)
	}
	return nil
}

// CompensationErrors returns any errors raised by Compensate functions
// during the most recent Run, so the caller can log them without Run itself
// needing to propagate a secondary failure.
func (s *Saga) CompensationErrors() []error {
	return s.compensationErrors
}

func (s *Saga) compensateExecuted(ctx context.Context) {
	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(ctx); err != nil {
			s.compensationErrors = append(s.compensationErrors, err)
		}
	}
}
