package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rahul/reforge/internal/plan"
	"github.com/rahul/reforge/internal/store"
)

const defaultPlannerPrompt = `You are an agent that automates a creative-tooling project by calling tools.
Turn the user's request into an ordered plan of tool calls. Use only the tools
listed below and supply every argument they declare.

New scripts are compiled when the host reloads. Tools that use a type defined
in a new script (such as create_asset) run after that reload automatically, so
list them in the same plan after the script that defines the type.`

const defaultChainPrompt = `You are documenting work that was just completed in a creative-tooling project.
Write or update documentation for the source files shown below. Use only the
tools listed below.`

const responseFormat = `Respond with ONLY a JSON object, no prose and no markdown, in this form:
{"plan":[{"tool":"<tool name>","arguments":{"<name>":"<value>"},"description":"<why>"}]}
Return {"plan":[]} if nothing needs to be done.`

// Artifact is a source file produced by an executed step.
type Artifact struct {
	Path    string
	Content string
}

// PromptManager builds plan-generation prompts. Instructions can be
// overridden by planner.md and chain.md in Directory.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func (pm *PromptManager) load(name, def string) (string, error) {
	if pm == nil || pm.Directory == "" {
		return def, nil
	}
	path := filepath.Join(pm.Directory, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return def, nil
		}
		return def, fmt.Errorf("failed to read prompt %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return def, nil
	}
	return text, nil
}

func (pm *PromptManager) GetPlannerPrompt() (string, error) {
	return pm.load("planner.md", defaultPlannerPrompt)
}

func (pm *PromptManager) GetChainPrompt() (string, error) {
	return pm.load("chain.md", defaultChainPrompt)
}

// BuildPlanPrompt concatenates the instructions, the capability manifest,
// prior conversation and the request.
func (pm *PromptManager) BuildPlanPrompt(manifest string, history []store.Message, request string) (string, error) {
	instructions, err := pm.GetPlannerPrompt()

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n## Available Tools\n")
	b.WriteString(manifest)
	if len(history) > 0 {
		b.WriteString("\n## Previous Conversation\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}
	b.WriteString("\n## User Request\n")
	b.WriteString(request)
	b.WriteString("\n\n")
	b.WriteString(responseFormat)
	return b.String(), err
}

// BuildChainPrompt builds the follow-up prompt scoped to a reduced manifest.
// Failed steps are included so the model can correct course.
func (pm *PromptManager) BuildChainPrompt(manifest, request string, artifacts []Artifact, failures []plan.StepResult) (string, error) {
	instructions, err := pm.GetChainPrompt()

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n## Available Tools\n")
	b.WriteString(manifest)
	b.WriteString("\n## Original Request\n")
	b.WriteString(request)
	b.WriteString("\n\n## Files Created\n")
	for _, a := range artifacts {
		fmt.Fprintf(&b, "### %s\n```\n%s\n```\n", a.Path, strings.TrimRight(a.Content, "\n"))
	}
	if len(failures) > 0 {
		b.WriteString("\n## Steps That Failed\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "- %s (%s): %s\n", f.Step.Tool, f.Step.Description, f.Detail)
		}
	}
	b.WriteString("\n")
	b.WriteString(responseFormat)
	return b.String(), err
}
