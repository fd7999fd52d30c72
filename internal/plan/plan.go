package plan

import (
	"errors"
	"fmt"
)

// Phase says whether a step can run before the host reloads or only after it.
type Phase string

const (
	PhasePreReset  Phase = "pre_reset"
	PhasePostReset Phase = "post_reset"
)

// Outcome is the result of invoking a single step.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Step represents a single tool invocation in a plan.
type Step struct {
	Tool        string         `json:"tool"`
	Arguments   map[string]any `json:"arguments"`
	Description string         `json:"description"`
}

// Plan represents a sequence of steps derived from a user request.
type Plan struct {
	Steps           []Step `json:"plan"`
	OriginalRequest string `json:"originalRequest,omitempty"`
	CorrelationID   string `json:"correlationId,omitempty"`
}

// StepResult records what happened when a step was invoked.
type StepResult struct {
	Step    Step    `json:"step"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail"`
}

var ErrMissingRequest = errors.New("plan has no originalRequest")

func (p Plan) Empty() bool {
	return len(p.Steps) == 0
}

// Validate checks the plan against the schema. The original request is only
// required once the plan has been persisted for resumption.
func (p Plan) Validate(requireRequest bool) error {
	for i, s := range p.Steps {
		if s.Tool == "" {
			return fmt.Errorf("%w: step %d has no tool", ErrParse, i+1)
		}
	}
	if requireRequest && p.OriginalRequest == "" {
		return ErrMissingRequest
	}
	return nil
}

func Success(step Step, detail string) StepResult {
	return StepResult{Step: step, Outcome: OutcomeSuccess, Detail: detail}
}

func Failure(step Step, detail string) StepResult {
	return StepResult{Step: step, Outcome: OutcomeFailure, Detail: detail}
}

func (r StepResult) Failed() bool {
	return r.Outcome != OutcomeSuccess
}

// Failures returns the failed results in order.
func Failures(results []StepResult) []StepResult {
	var failed []StepResult
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}
