package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rahul/reforge/internal/plan"
)

var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMissingArgument = errors.New("missing argument")
	ErrDuplicateTool   = errors.New("tool already registered")
)

// Param is one typed argument of a capability.
type Param struct {
	Name        string
	Type        string
	Description string
	Optional    bool
}

// Func executes a capability.
type Func func(ctx context.Context, args Args) (string, error)

// Capability is a named host-side operation the executor may invoke.
type Capability struct {
	Name        string
	Description string
	Parameters  []Param

	// Phase is static per tool: post-reset tools operate on entities that
	// only exist after the host has rebuilt.
	Phase plan.Phase
	// TriggersReload marks tools whose success makes the host rebuild.
	TriggersReload bool
	// ArtifactArg names the argument holding the path of a source artifact
	// produced by the step. Such steps warrant a chained follow-up plan.
	ArtifactArg string

	Run Func
}

// Registry manages the set of available capabilities. It is filled at
// process start and read-only afterwards.
type Registry struct {
	Tools map[string]Capability
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Capability),
	}
}

func (r *Registry) Register(c Capability) error {
	if c.Name == "" {
		return errors.New("capability has no name")
	}
	if c.Run == nil {
		return fmt.Errorf("capability %s has no implementation", c.Name)
	}
	if _, ok := r.Tools[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, c.Name)
	}
	if c.Phase == "" {
		c.Phase = plan.PhasePreReset
	}
	r.Tools[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// MustRegister is Register for static tables built at startup.
func (r *Registry) MustRegister(caps ...Capability) {
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.Tools[name]
	return c, ok
}

// List returns capabilities in registration order.
func (r *Registry) List() []Capability {
	out := make([]Capability, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.Tools[name])
	}
	return out
}

func (r *Registry) PhaseOf(tool string) (plan.Phase, bool) {
	c, ok := r.Tools[tool]
	if !ok {
		return "", false
	}
	return c.Phase, true
}

// Subset returns a registry restricted to the named capabilities. Unknown
// names are ignored.
func (r *Registry) Subset(names ...string) *Registry {
	sub := NewRegistry()
	for _, name := range names {
		if c, ok := r.Tools[name]; ok {
			if _, dup := sub.Tools[name]; !dup {
				sub.Tools[name] = c
				sub.order = append(sub.order, name)
			}
		}
	}
	return sub
}

// Describe renders the manifest embedded in plan-generation prompts.
func (r *Registry) Describe() string {
	var b strings.Builder
	for i, c := range r.List() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Tool: %s\n", c.Name)
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
		if len(c.Parameters) == 0 {
			b.WriteString("Arguments: none\n")
			continue
		}
		params := make([]string, 0, len(c.Parameters))
		for _, p := range c.Parameters {
			params = append(params, fmt.Sprintf("%s (%s)", p.Name, p.Type))
		}
		fmt.Fprintf(&b, "Arguments: %s\n", strings.Join(params, ", "))
	}
	return b.String()
}

// Invoke looks up and runs the step's capability. It never panics and never
// returns an error: every problem becomes a failed StepResult.
func (r *Registry) Invoke(ctx context.Context, step plan.Step) (result plan.StepResult) {
	c, ok := r.Tools[step.Tool]
	if !ok {
		return plan.Failure(step, fmt.Sprintf("%v %q", ErrUnknownTool, step.Tool))
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = plan.Failure(step, fmt.Sprintf("tool %s panicked: %v", c.Name, rec))
		}
	}()

	args := Args(step.Arguments)
	for _, p := range c.Parameters {
		if p.Optional {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return plan.Failure(step, fmt.Sprintf("%v %q for tool %s", ErrMissingArgument, p.Name, c.Name))
		}
	}

	out, err := c.Run(ctx, args)
	if err != nil {
		return plan.Failure(step, err.Error())
	}
	return plan.Success(step, out)
}
