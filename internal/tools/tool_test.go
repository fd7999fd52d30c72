package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/rahul/reforge/internal/host"
	"github.com/rahul/reforge/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(ctx context.Context, args Args) (string, error) {
	return args.OptionalString("text", "echo"), nil
}

func TestRegistryDescribe(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		Capability{
			Name:        "create_script",
			Description: "Create a script.",
			Parameters:  []Param{{Name: "path", Type: "string"}, {Name: "content", Type: "string"}},
			Run:         echo,
		},
		Capability{Name: "ping", Description: "Ping the host.", Run: echo},
	)

	want := "Tool: create_script\n" +
		"Description: Create a script.\n" +
		"Arguments: path (string), content (string)\n" +
		"\n" +
		"Tool: ping\n" +
		"Description: Ping the host.\n" +
		"Arguments: none\n"
	assert.Equal(t, want, r.Describe())
}

func TestRegistryRejectsDuplicatesAndIncompleteCapabilities(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Capability{Name: "a", Run: echo}))
	assert.ErrorIs(t, r.Register(Capability{Name: "a", Run: echo}), ErrDuplicateTool)
	assert.Error(t, r.Register(Capability{Name: "", Run: echo}))
	assert.Error(t, r.Register(Capability{Name: "b"}))
}

func TestRegistryDefaultsPhaseToPreReset(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(Capability{Name: "a", Run: echo})
	phase, ok := r.PhaseOf("a")
	require.True(t, ok)
	assert.Equal(t, plan.PhasePreReset, phase)

	_, ok = r.PhaseOf("missing")
	assert.False(t, ok)
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Invoke(context.Background(), plan.Step{Tool: "summon_dragon"})
	assert.Equal(t, plan.OutcomeFailure, res.Outcome)
	assert.Contains(t, res.Detail, "unknown tool")
	assert.Contains(t, res.Detail, "summon_dragon")
}

func TestInvokeNeverPropagatesFailures(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		Capability{Name: "fails", Run: func(ctx context.Context, args Args) (string, error) {
			return "", errors.New("disk on fire")
		}},
		Capability{Name: "panics", Run: func(ctx context.Context, args Args) (string, error) {
			panic("nil host")
		}},
		Capability{
			Name:       "needs_path",
			Parameters: []Param{{Name: "path", Type: "string"}, {Name: "mode", Type: "string", Optional: true}},
			Run:        echo,
		},
	)

	res := r.Invoke(context.Background(), plan.Step{Tool: "fails"})
	assert.True(t, res.Failed())
	assert.Equal(t, "disk on fire", res.Detail)

	res = r.Invoke(context.Background(), plan.Step{Tool: "panics"})
	assert.True(t, res.Failed())
	assert.Contains(t, res.Detail, "panicked")

	res = r.Invoke(context.Background(), plan.Step{Tool: "needs_path", Arguments: map[string]any{}})
	assert.True(t, res.Failed())
	assert.Contains(t, res.Detail, `"path"`)

	res = r.Invoke(context.Background(), plan.Step{Tool: "needs_path", Arguments: map[string]any{"path": "x", "text": "hi"}})
	assert.False(t, res.Failed())
	assert.Equal(t, "hi", res.Detail)
}

func TestSubset(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		Capability{Name: "a", Run: echo},
		Capability{Name: "b", Run: echo},
		Capability{Name: "c", Run: echo},
	)
	sub := r.Subset("c", "a", "missing", "a")

	names := []string{}
	for _, c := range sub.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"c", "a"}, names)

	res := sub.Invoke(context.Background(), plan.Step{Tool: "b"})
	assert.True(t, res.Failed())
}

func TestArgs(t *testing.T) {
	a := Args{"s": "x", "n": float64(3), "b": true, "obj": map[string]any{}}
	s, err := a.String("s")
	require.NoError(t, err)
	assert.Equal(t, "x", s)

	s, err = a.String("n")
	require.NoError(t, err)
	assert.Equal(t, "3", s)

	s, err = a.String("b")
	require.NoError(t, err)
	assert.Equal(t, "true", s)

	_, err = a.String("obj")
	assert.Error(t, err)

	_, err = a.String("missing")
	assert.ErrorIs(t, err, ErrMissingArgument)

	assert.Equal(t, "def", a.OptionalString("missing", "def"))
}

func TestHostCapabilities(t *testing.T) {
	root := t.TempDir()
	ws, err := host.NewWorkspace(root, host.WorkspaceOptions{})
	require.NoError(t, err)

	r := NewRegistry()
	r.MustRegister(HostCapabilities(ws, "Docs")...)

	ctx := context.Background()
	res := r.Invoke(ctx, plan.Step{Tool: CreateScript, Arguments: map[string]any{
		"path": "Scripts/Foo.cs", "content": "class Foo {}",
	}})
	require.False(t, res.Failed(), res.Detail)

	res = r.Invoke(ctx, plan.Step{Tool: ReadScript, Arguments: map[string]any{"path": "Scripts/Foo.cs"}})
	require.False(t, res.Failed(), res.Detail)
	assert.Equal(t, "class Foo {}", res.Detail)

	res = r.Invoke(ctx, plan.Step{Tool: UpdateScript, Arguments: map[string]any{
		"path": "Scripts/Missing.cs", "content": "x",
	}})
	assert.True(t, res.Failed())

	res = r.Invoke(ctx, plan.Step{Tool: UpdateDocumentation, Arguments: map[string]any{
		"path": "Foo.md", "content": "# Foo",
	}})
	require.False(t, res.Failed(), res.Detail)
	doc, err := ws.ReadTextArtifact("Docs/Foo.md")
	require.NoError(t, err)
	assert.Equal(t, "# Foo", doc)

	// The type is not loaded until the host restarts.
	res = r.Invoke(ctx, plan.Step{Tool: CreateAsset, Arguments: map[string]any{"type": "Foo", "name": "Bar"}})
	assert.True(t, res.Failed())
	assert.Contains(t, res.Detail, "not loaded")

	phase, _ := r.PhaseOf(CreateAsset)
	assert.Equal(t, plan.PhasePostReset, phase)
	phase, _ = r.PhaseOf(CreateScript)
	assert.Equal(t, plan.PhasePreReset, phase)
}

func TestDocPath(t *testing.T) {
	assert.Equal(t, "Docs/Foo.md", docPath("Docs", "Foo.md"))
	assert.Equal(t, "Docs/Foo.md", docPath("Docs", "Docs/Foo.md"))
	assert.Equal(t, "Docs/api/Foo.md", docPath("Docs", "api/Foo.md"))
}
