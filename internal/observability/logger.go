package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeState       EventType = "state"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeToolResult  EventType = "tool_result"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeCheckpoint  EventType = "checkpoint"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger emits structured events through zap. LLM exchanges are also kept in
// a JSONL file for later inspection.
type Logger struct {
	zl         *zap.Logger
	llmLogPath string
	maxSize    int64
	mu         sync.Mutex
}

// NewZap builds the process logger.
func NewZap(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.OutputPaths = []string{"stderr"}
	return config.Build()
}

// NewLogger wraps zl. An empty logDir disables the LLM transcript file.
func NewLogger(zl *zap.Logger, logDir string) *Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	l := &Logger{zl: zl, maxSize: 10 * 1024 * 1024} // 10MB
	if logDir != "" {
		l.llmLogPath = filepath.Join(logDir, "llm.jsonl")
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewLogger(zap.NewNop(), "")
}

func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	l.zl.Info(string(evt.Type),
		zap.String("session_id", evt.SessionID),
		zap.String("run_id", evt.RunID),
		zap.Any("data", evt.Data),
	)

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		data, err := json.Marshal(evt)
		if err != nil {
			l.zl.Warn("failed to marshal event", zap.Error(err))
			return
		}
		l.writeToFile(data)
	}
}

func (l *Logger) Error(msg string, err error, fields ...zap.Field) {
	l.zl.Error(msg, append(fields, zap.Error(err))...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zl.Warn(msg, fields...)
}

func (l *Logger) writeToFile(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		l.zl.Warn("failed to create log directory", zap.Error(err))
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.zl.Warn("failed to open log file", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.zl.Warn("failed to write to log file", zap.Error(err))
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogState(sessionID, runID, state string) {
	l.Log(Event{
		Type:      EventTypeState,
		SessionID: sessionID,
		RunID:     runID,
		Data:      map[string]string{"state": state},
	})
}

func (l *Logger) LogPlan(sessionID, runID string, steps int, pre, post int) {
	l.Log(Event{
		Type:      EventTypePlan,
		SessionID: sessionID,
		RunID:     runID,
		Data:      map[string]int{"steps": steps, "pre_reset": pre, "post_reset": post},
	})
}

func (l *Logger) LogToolCall(sessionID, runID, tool string, args map[string]any) {
	l.Log(Event{
		Type:      EventTypeToolCall,
		SessionID: sessionID,
		RunID:     runID,
		Data: map[string]any{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(sessionID, runID, tool, outcome, detail string) {
	l.Log(Event{
		Type:      EventTypeToolResult,
		SessionID: sessionID,
		RunID:     runID,
		Data: map[string]string{
			"tool":    tool,
			"outcome": outcome,
			"detail":  detail,
		},
	})
}

func (l *Logger) LogPolicy(sessionID, runID, tool, effect, reason string) {
	l.Log(Event{
		Type:      EventTypePolicyCheck,
		SessionID: sessionID,
		RunID:     runID,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogCheckpoint(sessionID, runID, action, path string, steps int) {
	l.Log(Event{
		Type:      EventTypeCheckpoint,
		SessionID: sessionID,
		RunID:     runID,
		Data: map[string]any{
			"action": action,
			"path":   path,
			"steps":  steps,
		},
	})
}

func (l *Logger) LogLLM(sessionID, runID string, prompt string, response string, errMsg string) {
	l.Log(Event{
		Type:      EventTypeLLM,
		SessionID: sessionID,
		RunID:     runID,
		Data: map[string]any{
			"prompt":   prompt,
			"response": response,
			"error":    errMsg,
		},
	})
}
