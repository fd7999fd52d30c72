package gateway

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rahul/reforge/internal/agent"
	"go.uber.org/zap"
)

// ConsoleGateway reads one request per line and prints each run summary.
type ConsoleGateway struct {
	In        io.Reader
	Out       io.Writer
	Brain     agent.Brain
	SessionID string
	Prompt    string
	Logger    *zap.Logger

	mu      sync.Mutex
	stopped bool
}

func NewConsoleGateway(in io.Reader, out io.Writer, brain agent.Brain, sessionID string, logger *zap.Logger) *ConsoleGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleGateway{
		In:        in,
		Out:       out,
		Brain:     brain,
		SessionID: sessionID,
		Prompt:    "> ",
		Logger:    logger,
	}
}

func (c *ConsoleGateway) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(c.In)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if c.isStopped() || ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(c.Out, c.Prompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.Out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		c.Logger.Debug("request received", zap.String("session_id", c.SessionID), zap.Int("length", len(line)))
		response, err := c.Brain.Think(ctx, c.SessionID, line)
		if err != nil {
			c.Logger.Error("error thinking", zap.Error(err))
			response = "Failed: " + err.Error()
		}
		if err := c.Send(c.SessionID, response); err != nil {
			return err
		}
	}
}

func (c *ConsoleGateway) Send(sessionID string, text string) error {
	_, err := fmt.Fprintln(c.Out, text)
	return err
}

// Stop ends the loop after the request in progress, if any.
func (c *ConsoleGateway) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func (c *ConsoleGateway) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
