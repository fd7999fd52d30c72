package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/reforge/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestTransactionSectionsAndFinalize(t *testing.T) {
	dir := t.TempDir()
	tx := NewTransaction(dir, "0123456789abcdef")

	tx.LogUserPrompt("create script Foo")
	tx.LogPrompt("Tool: create_script ...")
	tx.LogResponse(`{"plan":[]}`)
	tx.LogStepExecution("create_script", map[string]any{"path": "Scripts/Foo.cs"})
	tx.LogStepResult(plan.Success(plan.Step{Tool: "create_script"}, "Successfully created Scripts/Foo.cs"))
	tx.LogMessage("done")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written before Finalize")

	path, err := tx.Finalize()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "transaction_"))
	assert.True(t, strings.HasSuffix(path, "_01234567.log"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	for _, want := range []string{
		"=== USER PROMPT ===",
		"=== AGENTIC PROMPT SENT TO AI ===",
		"=== RAW AI PLAN RESPONSE ===",
		"=== EXECUTING TOOL: create_script ===",
		`"path": "Scripts/Foo.cs"`,
		"create_script success",
		"=== MESSAGE ===",
	} {
		assert.Contains(t, text, want)
	}
	assert.Less(t, strings.Index(text, "USER PROMPT"), strings.Index(text, "EXECUTING TOOL"))

	_, err = tx.Finalize()
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestLoggerEmitsEventsAndKeepsLLMTranscript(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dir := t.TempDir()
	l := NewLogger(zap.New(core), dir)

	l.LogToolCall("s", "r", "create_script", map[string]any{"path": "a"})
	l.LogLLM("s", "r", "prompt", "response", "")

	assert.Equal(t, 2, logs.Len())
	assert.Equal(t, "tool_call", logs.All()[0].Message)

	data, err := os.ReadFile(filepath.Join(dir, "llm.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"), "only llm events go to the transcript")
	assert.Contains(t, string(data), `"type":"llm"`)
}

func TestLoggerRotatesTranscript(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(zap.NewNop(), dir)
	l.maxSize = 10

	l.LogLLM("s", "r", strings.Repeat("p", 50), "", "")
	l.LogLLM("s", "r", "second", "", "")

	_, err := os.Stat(filepath.Join(dir, "llm.jsonl.old"))
	assert.NoError(t, err)
}

func TestStatus(t *testing.T) {
	s := NewStatus()
	state, _, _ := s.Get()
	assert.Equal(t, "Idle", state)

	s.Set("AwaitingModel", "create script Foo")
	state, task, _ := s.Get()
	assert.Equal(t, "AwaitingModel", state)
	assert.Equal(t, "create script Foo", task)
}

func TestPrintBannerWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, false)
	assert.NotContains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "plan, checkpoint, reload, resume")
}
