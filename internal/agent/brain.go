package agent

import (
	"context"
	"errors"

	"github.com/rahul/reforge/internal/backend"
	"github.com/rahul/reforge/internal/governance"
	"github.com/rahul/reforge/internal/host"
	"github.com/rahul/reforge/internal/observability"
	"github.com/rahul/reforge/internal/store"
	"github.com/rahul/reforge/internal/tools"
)

// Brain defines the interface front ends use to hand requests to the agent.
type Brain interface {
	Think(ctx context.Context, sessionID string, input string) (string, error)
}

var (
	// ErrBackend means the model call failed or answered unsuccessfully.
	ErrBackend = errors.New("model backend error")
	// ErrPendingPlan means a checkpointed plan has not been resumed yet.
	ErrPendingPlan  = errors.New("a plan is waiting for the host to reload")
	ErrEmptyRequest = errors.New("empty request")
)

// State is a step of the per-run state machine.
type State string

const (
	StateIdle                  State = "Idle"
	StateBuildingPrompt        State = "BuildingPrompt"
	StateAwaitingModel         State = "AwaitingModel"
	StateExecutingPreReset     State = "ExecutingPreReset"
	StateCheckpointed          State = "Checkpointed"
	StateExecutingPostReset    State = "ExecutingPostReset"
	StateBuildingChainedPrompt State = "BuildingChainedPrompt"
	StateExecutingChained      State = "ExecutingChained"
	StateDone                  State = "Done"
	StateFailed                State = "Failed"
)

// HistoryStore keeps prior conversation for prompt context.
type HistoryStore interface {
	AddMessage(sessionID string, role string, content string) error
	GetHistory(sessionID string, limit int) ([]store.Message, error)
	RecordRun(r store.RunRecord) error
}

// ChainOptions controls the follow-up plan generated after new artifacts.
type ChainOptions struct {
	Enabled bool
	Tools   []string
}

// Options are the collaborators of an Engine. Backend, Registry, Checkpoints
// and Host are required.
type Options struct {
	Backend      backend.Backend
	Registry     *tools.Registry
	Checkpoints  *store.CheckpointStore
	Host         host.Host
	Dispatcher   host.Dispatcher
	History      HistoryStore
	Prompts      *PromptManager
	Policy       governance.PolicyEngine
	Logger       *observability.Logger
	LogDir       string
	HistoryLimit int
	Chain        ChainOptions
}

// Engine holds the long-lived collaborators. All per-run state lives in a
// Session so independent runs never share mutable state.
type Engine struct {
	Backend      backend.Backend
	Registry     *tools.Registry
	Checkpoints  *store.CheckpointStore
	Host         host.Host
	Dispatcher   host.Dispatcher
	History      HistoryStore
	Prompts      *PromptManager
	Policy       governance.PolicyEngine
	Logger       *observability.Logger
	LogDir       string
	HistoryLimit int
	Chain        ChainOptions
}

func NewEngine(o Options) *Engine {
	e := &Engine{
		Backend:      o.Backend,
		Registry:     o.Registry,
		Checkpoints:  o.Checkpoints,
		Host:         o.Host,
		Dispatcher:   o.Dispatcher,
		History:      o.History,
		Prompts:      o.Prompts,
		Policy:       o.Policy,
		Logger:       o.Logger,
		LogDir:       o.LogDir,
		HistoryLimit: o.HistoryLimit,
		Chain:        o.Chain,
	}
	if e.Dispatcher == nil {
		e.Dispatcher = host.Inline{}
	}
	if e.Prompts == nil {
		e.Prompts = NewPromptManager("")
	}
	if e.Logger == nil {
		e.Logger = observability.Nop()
	}
	if e.Registry == nil {
		e.Registry = tools.NewRegistry()
	}
	return e
}

// NewSession returns an explicit handle for one conversation.
func (e *Engine) NewSession(sessionID string) *Session {
	return &Session{
		ID:     sessionID,
		engine: e,
		Status: observability.NewStatus(),
		state:  StateIdle,
	}
}

// Think runs a request in a fresh session handle.
func (e *Engine) Think(ctx context.Context, sessionID string, input string) (string, error) {
	s := e.NewSession(sessionID)
	return s.Run(ctx, input), nil
}

// ResumePending consumes a pending checkpoint, if any, and finishes it. The
// boolean is false when there was nothing to resume.
func (e *Engine) ResumePending(ctx context.Context, sessionID string) (*Session, bool) {
	cp, err := e.Checkpoints.TryResume()
	s := e.NewSession(sessionID)
	if err != nil {
		s.FailResume(err)
		return s, true
	}
	if cp == nil {
		return nil, false
	}
	s.Resume(ctx, cp)
	return s, true
}
