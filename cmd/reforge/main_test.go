package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rahul/reforge/internal/plan"
	"github.com/rahul/reforge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeErr(args ...string) (string, error) {
	configPath, workspace, sessionID = "config.json", "", "cli"
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := executeErr(args...)
	require.NoError(t, err)
	return out
}

func TestToolsCommandPrintsManifest(t *testing.T) {
	out := execute(t, "tools", "--workspace", t.TempDir())

	assert.Contains(t, out, "Tool: create_script\n")
	assert.Contains(t, out, "Arguments: type (string), name (string)\n")
}

func TestStatusAndDiscard(t *testing.T) {
	dir := t.TempDir()
	cps := store.NewCheckpointStore(filepath.Join(dir, ".reforge"))
	require.NoError(t, cps.Write(store.Checkpoint{
		Plan: plan.Plan{
			Steps:           []plan.Step{{Tool: "create_asset", Arguments: map[string]any{"type": "Foo", "name": "Bar"}}},
			OriginalRequest: "create Foo and Bar",
		},
		PrecedingResults: []plan.StepResult{plan.Success(plan.Step{Tool: "create_script"}, "ok")},
	}))

	out := execute(t, "status", "--workspace", dir)
	assert.Contains(t, out, "Request: create Foo and Bar")
	assert.Contains(t, out, "[success] create_script")
	assert.Contains(t, out, "[pending] create_asset")

	out = execute(t, "discard", "--workspace", dir)
	assert.Contains(t, out, "Pending plan discarded.")

	out = execute(t, "status", "--workspace", dir)
	assert.Contains(t, out, "Checkpoint: none")
}

func TestResumeReportsFailedCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "reforge.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("providers:\n  ollama:\n    model: llama3\n    enabled: true\n"), 0644))

	cps := store.NewCheckpointStore(filepath.Join(dir, ".reforge"))
	require.NoError(t, os.MkdirAll(filepath.Dir(cps.Path), 0755))
	require.NoError(t, os.WriteFile(cps.Path, []byte("{not json"), 0600))

	out, err := executeErr("resume", "--config", cfgPath, "--workspace", dir)
	assert.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out, "could not persist the plan checkpoint")

	out, err = executeErr("resume", "--config", cfgPath, "--workspace", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No pending plan.")
}
