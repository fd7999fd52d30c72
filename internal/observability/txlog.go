package observability

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rahul/reforge/internal/plan"
)

var ErrFinalized = errors.New("transaction log already finalized")

// Transaction accumulates the audit trail of one run and writes it in a
// single write at the end. A run that never finalizes leaves no file.
type Transaction struct {
	dir       string
	runID     string
	started   time.Time
	buf       strings.Builder
	finalized bool
}

func NewTransaction(dir, runID string) *Transaction {
	t := &Transaction{dir: dir, runID: runID, started: time.Now()}
	fmt.Fprintf(&t.buf, "TRANSACTION %s started %s\n", runID, t.started.Format(time.RFC3339))
	return t
}

func (t *Transaction) section(title, body string) {
	fmt.Fprintf(&t.buf, "\n=== %s ===\n", title)
	t.buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		t.buf.WriteString("\n")
	}
}

func (t *Transaction) LogUserPrompt(text string) {
	t.section("USER PROMPT", text)
}

func (t *Transaction) LogPrompt(text string) {
	t.section("AGENTIC PROMPT SENT TO AI", text)
}

func (t *Transaction) LogResponse(text string) {
	t.section("RAW AI PLAN RESPONSE", text)
}

func (t *Transaction) LogStepExecution(tool string, arguments map[string]any) {
	args, err := json.MarshalIndent(arguments, "", "  ")
	if err != nil {
		args = []byte(fmt.Sprintf("%v", arguments))
	}
	t.section("EXECUTING TOOL: "+tool, "Arguments: "+string(args))
}

func (t *Transaction) LogStepResult(r plan.StepResult) {
	t.section("RESULT", fmt.Sprintf("%s %s: %s", r.Step.Tool, r.Outcome, r.Detail))
}

func (t *Transaction) LogMessage(text string) {
	t.section("MESSAGE", text)
}

// String returns the accumulated text.
func (t *Transaction) String() string {
	return t.buf.String()
}

// Finalize writes the log to a timestamped file and returns its path.
func (t *Transaction) Finalize() (string, error) {
	if t.finalized {
		return "", ErrFinalized
	}
	t.finalized = true

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	id := t.runID
	if len(id) > 8 {
		id = id[:8]
	}
	name := fmt.Sprintf("transaction_%s_%s.log", t.started.Format("20060102_150405"), id)
	path := filepath.Join(t.dir, name)
	if err := os.WriteFile(path, []byte(t.buf.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write transaction log: %w", err)
	}
	return path, nil
}
