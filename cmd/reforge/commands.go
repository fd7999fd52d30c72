package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rahul/reforge/internal/agent"
	"github.com/rahul/reforge/internal/gateway"
	"github.com/rahul/reforge/internal/observability"
	"github.com/rahul/reforge/internal/store"
	"github.com/spf13/cobra"
)

var errRunFailed = errors.New("run failed")

var statusLimit int

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Plan and execute a single request",
	Long: `Plan and execute a single request. A plan left pending by a previous
process is finished first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		request := strings.Join(args, " ")
		out := cmd.OutOrStdout()
		return a.withMainThread(cmd.Context(), func(ctx context.Context) error {
			if resumed, ok := a.resumePending(ctx); ok {
				fmt.Fprintln(out, resumed.Summary())
			}
			s := a.engine.NewSession(sessionID)
			fmt.Fprintln(out, s.Run(ctx, request))
			if s.State() == agent.StateFailed {
				return errRunFailed
			}
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Finish a plan checkpointed before the host reloaded",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		return a.withMainThread(cmd.Context(), func(ctx context.Context) error {
			s, ok := a.resumePending(ctx)
			if !ok {
				fmt.Fprintln(out, "No pending plan.")
				return nil
			}
			fmt.Fprintln(out, s.Summary())
			if s.State() == agent.StateFailed {
				return errRunFailed
			}
			return nil
		})
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive console",
	Args:  cobra.NoArgs,
	RunE:  runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if observability.IsTerminal(os.Stdout) {
		observability.PrintBanner(out, true)
	}
	return a.withMainThread(cmd.Context(), func(ctx context.Context) error {
		if resumed, ok := a.resumePending(ctx); ok {
			fmt.Fprintln(out, resumed.Summary())
		}
		console := gateway.NewConsoleGateway(cmd.InOrStdin(), out, a.engine, sessionID, a.zl)
		go func() {
			<-ctx.Done()
			console.Stop()
		}()
		return console.Start(ctx)
	})
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pending checkpoint and recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		cp, err := a.engine.Checkpoints.Peek()
		switch {
		case err != nil:
			fmt.Fprintf(out, "Checkpoint: unreadable (%v)\n", err)
		case cp == nil:
			fmt.Fprintln(out, "Checkpoint: none")
		default:
			printCheckpoint(cmd, cp)
		}

		runs, err := a.history.RecentRuns(statusLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return nil
		}
		fmt.Fprintln(out, "\nRecent runs:")
		for _, r := range runs {
			fmt.Fprintf(out, "  %s  %-12s %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.State, r.Request)
		}
		return nil
	},
}

func printCheckpoint(cmd *cobra.Command, cp *store.Checkpoint) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checkpoint: pending since %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Request: %s\n", cp.OriginalRequest)
	for _, r := range cp.PrecedingResults {
		fmt.Fprintf(out, "  [%s] %s\n", r.Outcome, r.Step.Tool)
	}
	for _, s := range cp.Steps {
		fmt.Fprintf(out, "  [pending] %s\n", s.Tool)
	}
}

var discardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Abandon the pending checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.Checkpoints.Discard(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Pending plan discarded.")
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the capability manifest sent to the model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprint(cmd.OutOrStdout(), a.engine.Registry.Describe())
		return nil
	},
}
