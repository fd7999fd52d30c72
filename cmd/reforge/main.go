package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rahul/reforge/internal/agent"
	"github.com/rahul/reforge/internal/backend"
	"github.com/rahul/reforge/internal/governance"
	"github.com/rahul/reforge/internal/host"
	"github.com/rahul/reforge/internal/observability"
	"github.com/rahul/reforge/internal/store"
	"github.com/rahul/reforge/internal/tools"
	"github.com/rahul/reforge/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	debug      bool
	sessionID  string
	workspace  string
)

var rootCmd = &cobra.Command{
	Use:   "reforge",
	Short: "reforge - plan and execute tool calls across host reloads",
	Long: `reforge turns a natural-language request into a plan of tool calls against a
creative-tooling workspace. Steps that need freshly compiled types are
checkpointed and finished after the host reloads.

Run without arguments to start the interactive console.`,
	SilenceUsage: true,
	RunE:         runRepl,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "Config file (.json, .yaml or .toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&sessionID, "session", "s", "cli", "Conversation session id")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: from config)")

	statusCmd.Flags().IntVar(&statusLimit, "runs", 5, "Number of recent runs to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(toolsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the wired process: one engine over one workspace.
type app struct {
	cfg        *config.Config
	zl         *zap.Logger
	engine     *agent.Engine
	history    *store.HistoryStore
	mainThread *host.MainThread
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || configPath != "config.json" {
			return nil, err
		}
		cfg = config.Default()
	}
	if workspace != "" {
		cfg.App.Workspace = workspace
	}
	return cfg, nil
}

// newApp wires every collaborator. The model backend is only built when the
// command can ask for a plan.
func newApp(withBackend bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	zl, err := observability.NewZap(debug || cfg.Logging.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := observability.NewLogger(zl, cfg.LogPath())

	ws, err := host.NewWorkspace(cfg.App.Workspace, host.WorkspaceOptions{
		ScriptsDir:  cfg.Host.ScriptsDir,
		AssetsDir:   cfg.Host.AssetsDir,
		ScriptExt:   cfg.Host.ScriptExt,
		ReadyMarker: cfg.Host.ReadyMarker,
		ReloadFlag:  cfg.Host.ReloadFlag,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	registry := tools.NewRegistry()
	registry.MustRegister(tools.HostCapabilities(ws, cfg.Host.DocsDir)...)

	history, err := store.NewHistoryStore(cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	policy, err := governance.NewPolicyEngine(cfg.Policy.DenyTools, cfg.Policy.DenyPatterns)
	if err != nil {
		history.Close()
		return nil, err
	}

	var be backend.Backend
	if withBackend {
		be, err = backend.New(cfg)
		if err != nil {
			history.Close()
			return nil, err
		}
	}

	mt := host.NewMainThread()
	engine := agent.NewEngine(agent.Options{
		Backend:      be,
		Registry:     registry,
		Checkpoints:  store.NewCheckpointStore(cfg.StatePath()),
		Host:         ws,
		Dispatcher:   mt,
		History:      history,
		Prompts:      agent.NewPromptManager(cfg.Engine.PromptsDir),
		Policy:       policy,
		Logger:       logger,
		LogDir:       cfg.LogPath(),
		HistoryLimit: cfg.Engine.HistoryLimit,
		Chain: agent.ChainOptions{
			Enabled: cfg.Engine.ChainEnabled,
			Tools:   cfg.Engine.ChainTools,
		},
	})

	zl.Debug("engine ready",
		zap.String("workspace", ws.Root),
		zap.String("state_dir", cfg.StatePath()),
		zap.Int("tools", len(registry.List())))

	return &app{cfg: cfg, zl: zl, engine: engine, history: history, mainThread: mt}, nil
}

func (a *app) Close() {
	a.history.Close()
	_ = a.zl.Sync()
}

// withMainThread runs fn while the calling goroutine serves host operations.
func (a *app) withMainThread(ctx context.Context, fn func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()

	g.Go(func() error {
		defer stopLoop()
		return fn(gctx)
	})
	a.mainThread.Loop(loopCtx)
	return g.Wait()
}

// resumePending finishes a checkpointed plan left by the previous process.
func (a *app) resumePending(ctx context.Context) (*agent.Session, bool) {
	s, ok := a.engine.ResumePending(ctx, sessionID)
	if ok {
		a.zl.Info("resumed pending plan",
			zap.String("session_id", sessionID),
			zap.String("state", string(s.State())))
	}
	return s, ok
}
