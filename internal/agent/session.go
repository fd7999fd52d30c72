package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rahul/reforge/internal/backend"
	"github.com/rahul/reforge/internal/governance"
	"github.com/rahul/reforge/internal/observability"
	"github.com/rahul/reforge/internal/plan"
	"github.com/rahul/reforge/internal/store"
	"github.com/rahul/reforge/internal/tools"
	"go.uber.org/zap"
)

// Session runs plans for one conversation. A session is not safe for
// concurrent use; there is a single active plan per process.
type Session struct {
	ID     string
	Status *observability.Status

	engine  *Engine
	runID   string
	request string
	state   State
	results []plan.StepResult
	err     error
	tx      *observability.Transaction
	logPath string
	final   string
}

func (s *Session) State() State { return s.state }

// Results returns every step result known for the current plan, including
// pre-reset results carried across a reload.
func (s *Session) Results() []plan.StepResult { return s.results }

// Err returns the error that moved the run to Failed, or nil.
func (s *Session) Err() error { return s.err }

// Summary returns the summary of the last finished run or resume.
func (s *Session) Summary() string { return s.final }

// RunID is the correlation id of the current plan.
func (s *Session) RunID() string { return s.runID }

// Transcript returns the transaction log text of the current run.
func (s *Session) Transcript() string {
	if s.tx == nil {
		return ""
	}
	return s.tx.String()
}

// LogPath is where the transaction log was written, if anywhere.
func (s *Session) LogPath() string { return s.logPath }

func (s *Session) begin(request, runID string) {
	if runID == "" {
		runID = uuid.NewString()
	}
	s.runID = runID
	s.request = request
	s.results = nil
	s.err = nil
	s.logPath = ""
	s.final = ""
	s.state = StateIdle
	s.tx = observability.NewTransaction(s.engine.LogDir, runID)
}

func (s *Session) transition(next State) {
	s.state = next
	s.Status.Set(string(next), s.request)
	s.engine.Logger.LogState(s.ID, s.runID, string(next))
}

// Run turns a request into a plan and executes as much of it as the host
// allows before it reloads. The returned summary is the only output.
func (s *Session) Run(ctx context.Context, request string) string {
	s.begin(request, "")
	summary := s.run(ctx, request)
	s.finish(summary, true)
	return summary
}

func (s *Session) run(ctx context.Context, request string) string {
	e := s.engine
	s.tx.LogUserPrompt(request)

	if strings.TrimSpace(request) == "" {
		return s.fail(ErrEmptyRequest, "Failed: the request is empty.")
	}
	// A second plan would overwrite the remainder of the one waiting for
	// the host to reload.
	waiting, err := e.Checkpoints.Pending()
	if err != nil {
		return s.failPersistence(err)
	}
	if waiting {
		return s.fail(ErrPendingPlan, "Failed: a previous plan is waiting for the host to reload. "+
			"Restart the host or run `reforge resume` to finish it, or `reforge discard` to abandon it.")
	}

	s.transition(StateBuildingPrompt)
	var history []store.Message
	if e.History != nil && e.HistoryLimit > 0 {
		h, err := e.History.GetHistory(s.ID, e.HistoryLimit)
		if err != nil {
			e.Logger.Warn("failed to load conversation history", zap.Error(err))
		}
		history = h
	}
	prompt, err := e.Prompts.BuildPlanPrompt(e.Registry.Describe(), history, request)
	if err != nil {
		e.Logger.Warn("using default planner prompt", zap.Error(err))
	}

	resp, err := s.await(ctx, prompt)
	if err != nil {
		return s.fail(err, fmt.Sprintf("Failed: %v", err))
	}

	p, err := plan.ParseResponse(resp.Message)
	if err != nil {
		return s.failParse(err)
	}
	p.OriginalRequest = request
	p.CorrelationID = s.runID

	if p.Empty() {
		s.tx.LogMessage("Plan has no steps.")
		return s.done("Done: the plan contained no steps, nothing was executed.")
	}

	pre, post := plan.Classify(p, e.Registry)
	e.Logger.LogPlan(s.ID, s.runID, len(p.Steps), len(pre), len(post))
	s.tx.LogMessage(fmt.Sprintf("Plan classified: %d pre-reset step(s), %d post-reset step(s).", len(pre), len(post)))

	// Nothing will make the host reload, so nothing needs to survive one.
	if len(pre) == 0 {
		s.executePhase(ctx, StateExecutingPostReset, post, e.Registry)
		return s.chain(ctx, request, nil)
	}

	// The reload can happen as soon as the first pre-reset step touches the
	// host, so the remainder is durable before any of them run.
	cp := store.Checkpoint{
		Plan:      plan.Plan{Steps: post, OriginalRequest: request, CorrelationID: s.runID},
		Phase:     plan.PhasePostReset,
		Preceding: pre,
	}
	if err := e.Checkpoints.Write(cp); err != nil {
		return s.failPersistence(err)
	}
	e.Logger.LogCheckpoint(s.ID, s.runID, "saved", e.Checkpoints.Path, len(post))
	s.tx.LogMessage(fmt.Sprintf("Checkpoint written to %s.", e.Checkpoints.Path))

	preResults := s.executePhase(ctx, StateExecutingPreReset, pre, e.Registry)

	cp.PrecedingResults = preResults
	if err := e.Checkpoints.Write(cp); err != nil {
		// The first checkpoint is still on disk, only the results are lost.
		e.Logger.Error("failed to record pre-reset results in checkpoint", err)
	}

	if s.reloadTriggered(preResults) {
		if err := e.Host.RequestReload(); err != nil {
			e.Logger.Warn("reload request failed", zap.Error(err))
		}
		s.transition(StateCheckpointed)
		summary := s.checkpointedSummary(preResults, len(post))
		s.tx.LogMessage(summary)
		return summary
	}

	// No step changed sources, so the host will not reload: continue here.
	resumed, err := e.Checkpoints.TryResume()
	if err != nil {
		return s.failPersistence(err)
	}
	if resumed == nil {
		return s.failPersistence(fmt.Errorf("%w: checkpoint disappeared before post-reset phase", store.ErrPersistence))
	}
	e.Logger.LogCheckpoint(s.ID, s.runID, "consumed", e.Checkpoints.Path, len(resumed.Steps))
	s.executePhase(ctx, StateExecutingPostReset, resumed.Steps, e.Registry)
	return s.chain(ctx, request, nil)
}

// Resume finishes a plan consumed from the checkpoint store after a reload.
func (s *Session) Resume(ctx context.Context, cp *store.Checkpoint) string {
	s.begin(cp.OriginalRequest, cp.CorrelationID)
	summary := s.resume(ctx, cp)
	s.finish(summary, false)
	return summary
}

func (s *Session) resume(ctx context.Context, cp *store.Checkpoint) string {
	e := s.engine
	s.tx.LogUserPrompt(cp.OriginalRequest)
	s.tx.LogMessage(fmt.Sprintf("Resuming after host reload: %d post-reset step(s), checkpoint created %s.",
		len(cp.Steps), cp.CreatedAt.Format("2006-01-02 15:04:05")))

	if err := cp.Validate(true); err != nil {
		return s.failPersistence(fmt.Errorf("%w: %v", store.ErrPersistence, err))
	}

	if err := e.Host.WaitReady(ctx); err != nil {
		return s.fail(err, fmt.Sprintf("Failed: host did not become ready: %v", err))
	}

	s.results = append(s.results, cp.PrecedingResults...)
	var unrecorded []plan.Step
	if len(cp.PrecedingResults) == 0 {
		unrecorded = cp.Preceding
	}

	s.executePhase(ctx, StateExecutingPostReset, cp.Steps, e.Registry)
	return s.chain(ctx, cp.OriginalRequest, unrecorded)
}

// FailResume reports a checkpoint that could not be consumed.
func (s *Session) FailResume(err error) string {
	s.begin("", "")
	summary := s.failPersistence(err)
	s.finish(summary, false)
	return summary
}

// await performs one model round-trip on a separate goroutine while the
// caller waits for it.
func (s *Session) await(ctx context.Context, prompt string) (backend.Response, error) {
	e := s.engine
	s.transition(StateAwaitingModel)
	s.tx.LogPrompt(prompt)

	ch := make(chan backend.Response, 1)
	go func() {
		ch <- e.Backend.Send(ctx, prompt)
	}()

	var resp backend.Response
	select {
	case resp = <-ch:
	case <-ctx.Done():
		resp = backend.Response{ErrorMessage: ctx.Err().Error()}
	}

	e.Logger.LogLLM(s.ID, s.runID, prompt, resp.Message, resp.ErrorMessage)
	if !resp.Success {
		s.tx.LogMessage("BACKEND ERROR: " + resp.ErrorMessage)
		return resp, fmt.Errorf("%w: %s", ErrBackend, resp.ErrorMessage)
	}
	s.tx.LogResponse(resp.Message)
	return resp, nil
}

func (s *Session) executePhase(ctx context.Context, state State, steps []plan.Step, reg *tools.Registry) []plan.StepResult {
	s.transition(state)
	out := make([]plan.StepResult, 0, len(steps))
	for _, step := range steps {
		s.tx.LogStepExecution(step.Tool, step.Arguments)
		s.engine.Logger.LogToolCall(s.ID, s.runID, step.Tool, step.Arguments)

		res := s.invoke(ctx, step, reg)

		s.tx.LogStepResult(res)
		s.engine.Logger.LogToolResult(s.ID, s.runID, step.Tool, string(res.Outcome), res.Detail)
		out = append(out, res)
	}
	s.results = append(s.results, out...)
	return out
}

// invoke checks policy, then runs the step on the host's dispatcher. A step
// can fail but never aborts its siblings.
func (s *Session) invoke(ctx context.Context, step plan.Step, reg *tools.Registry) plan.StepResult {
	e := s.engine
	if e.Policy != nil {
		verdict, err := e.Policy.Evaluate(ctx, governance.StepRequest(s.ID, step))
		if err != nil {
			return plan.Failure(step, fmt.Sprintf("policy check failed: %v", err))
		}
		e.Logger.LogPolicy(s.ID, s.runID, step.Tool, string(verdict.Effect), verdict.Reason)
		if verdict.Effect == governance.EffectDeny {
			return plan.Failure(step, "blocked by policy: "+verdict.Reason)
		}
	}

	var res plan.StepResult
	if err := e.Dispatcher.Do(ctx, func() { res = reg.Invoke(ctx, step) }); err != nil {
		return plan.Failure(step, fmt.Sprintf("not dispatched: %v", err))
	}
	return res
}

func (s *Session) reloadTriggered(results []plan.StepResult) bool {
	for _, r := range results {
		if r.Failed() {
			continue
		}
		if c, ok := s.engine.Registry.Get(r.Step.Tool); ok && c.TriggersReload {
			return true
		}
	}
	return false
}

func (s *Session) done(summary string) string {
	s.transition(StateDone)
	s.tx.LogMessage(summary)
	return summary
}

func (s *Session) fail(err error, summary string) string {
	s.err = err
	s.transition(StateFailed)
	s.tx.LogMessage(summary)
	s.engine.Logger.Error("run failed", err, zap.String("session_id", s.ID), zap.String("run_id", s.runID))
	return summary
}

func (s *Session) failParse(err error) string {
	if errors.Is(err, plan.ErrEmptyResponse) {
		return s.fail(err, "Failed: the model returned an empty response.")
	}
	return s.fail(err, fmt.Sprintf("Failed: could not parse the model's plan (%v). Rephrase the request and try again.", err))
}

func (s *Session) failPersistence(err error) string {
	return s.fail(err, fmt.Sprintf("Failed: could not persist the plan checkpoint: %v", err))
}

// finish records the run and writes the transaction log exactly once.
func (s *Session) finish(summary string, newRequest bool) {
	e := s.engine
	s.final = summary
	if e.History != nil {
		if newRequest {
			if err := e.History.AddMessage(s.ID, "user", s.request); err != nil {
				e.Logger.Warn("failed to save message", zap.Error(err))
			}
		}
		if err := e.History.AddMessage(s.ID, "assistant", summary); err != nil {
			e.Logger.Warn("failed to save message", zap.Error(err))
		}
		if err := e.History.RecordRun(store.RunRecord{
			CorrelationID: s.runID,
			SessionID:     s.ID,
			Request:       s.request,
			State:         string(s.state),
			Summary:       summary,
		}); err != nil {
			e.Logger.Warn("failed to record run", zap.Error(err))
		}
	}

	if e.LogDir == "" {
		return
	}
	path, err := s.tx.Finalize()
	if err != nil {
		e.Logger.Warn("failed to write transaction log", zap.Error(err))
		return
	}
	s.logPath = path
	e.Logger.Zap().Debug("transaction log written", zap.String("path", path))
}

func (s *Session) checkpointedSummary(pre []plan.StepResult, remaining int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase 1 complete: %s The host is reloading; %d remaining step(s) will run once it is ready.",
		countLine(pre), remaining)
	writeResults(&b, pre)
	return b.String()
}

func (s *Session) resultSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Done: %s", countLine(s.results))
	writeResults(&b, s.results)
	return b.String()
}

func countLine(results []plan.StepResult) string {
	failed := len(plan.Failures(results))
	return fmt.Sprintf("executed %d step(s), %d succeeded, %d failed.", len(results), len(results)-failed, failed)
}

func writeResults(b *strings.Builder, results []plan.StepResult) {
	for _, r := range results {
		mark := "[ok]"
		if r.Failed() {
			mark = "[failed]"
		}
		fmt.Fprintf(b, "\n%s %s: %s", mark, r.Step.Tool, firstLine(r.Detail))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
