package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	serveradapter "github.com/hylla/dealboard/internal/adapters/server"
	"github.com/hylla/dealboard/internal/adapters/storage/sqlite"
	"github.com/hylla/dealboard/internal/app"
	"github.com/hylla/dealboard/internal/config"
	"github.com/hylla/dealboard/internal/domain"
	"github.com/hylla/dealboard/internal/platform"
	"github.com/hylla/dealboard/internal/tui"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// main handles main.
func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes it against args.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// newRootCommand constructs the dealboard command tree.
func newRootCommand() *cobra.Command {
	opts := &globalOptions{
		appName: platform.DefaultAppName,
		devMode: version == "dev",
	}
	if envDev, ok := parseBoolEnv("DEALBOARD_DEV_MODE"); ok {
		opts.devMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("DEALBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:   "dealboard",
		Short: "A CRM pipeline board",
		Long: `dealboard keeps a sales pipeline as ordered stages of deal cards.

Run without a subcommand to open the terminal board. Pick a card up with space,
aim it with h/j/k/l and drop it with enter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "tui", func(_ context.Context, env *runtimeEnv) error {
				m := tui.NewModel(env.svc, tui.WithTitle(env.appName))
				env.logger.Info("starting tui program loop")
				if _, err := programFactory(m).Run(); err != nil {
					env.logger.Error("tui program terminated with error", "err", err)
					return fmt.Errorf("run tui program: %w", err)
				}
				return nil
			})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", opts.devMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newServeCommand(opts),
		newExportCommand(opts),
		newImportCommand(opts),
		newPathsCommand(opts),
		newBoardCommand(opts),
		newMoveCommand(opts),
		newRenameCommand(opts),
	)
	return root
}

// runtimeEnv holds the opened runtime for one command flow.
type runtimeEnv struct {
	appName    string
	devMode    bool
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
}

// withRuntime opens config, logging, storage, and the service around one command flow.
func withRuntime(cmd *cobra.Command, opts *globalOptions, command string, fn func(context.Context, *runtimeEnv) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stderr := cmd.ErrOrStderr()
	env, err := openRuntime(ctx, opts, command, stderr)
	if err != nil {
		return err
	}
	defer env.close(stderr)

	env.logger.Info("command flow start", "command", command)
	if err := fn(ctx, env); err != nil {
		env.logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	env.logger.Info("command flow complete", "command", command)
	return nil
}

// openRuntime resolves paths and config, then opens the logger, repository, and service.
func openRuntime(ctx context.Context, opts *globalOptions, command string, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: opts.appName,
		DevMode: opts.devMode,
	})
	if err != nil {
		return nil, err
	}

	configPath := opts.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("DEALBOARD_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("DEALBOARD_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
		logger.SetConsoleEnabled(false)
	}
	env := &runtimeEnv{
		appName:    opts.appName,
		devMode:    opts.devMode,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
	}

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", dbPath)
	logger.Info("configuration loaded", "config_path", configPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		env.close(stderr)
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	env.repo = repo
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	svc, err := app.Open(ctx, repo, uuid.NewString, nil, app.ServiceConfig{
		PipelineName:        cfg.Board.PipelineName,
		StageTemplates:      stageTemplates(cfg.Board.Stages),
		SeedDemoCards:       cfg.Board.SeedDemoCards,
		DefaultDeletePolicy: domain.DeleteStageMode(cfg.Board.DeletePolicy),
		Logger:              logger,
	})
	if err != nil {
		logger.Error("board load failed", "err", err)
		env.close(stderr)
		return nil, fmt.Errorf("load board: %w", err)
	}
	env.svc = svc
	logger.Debug("application service initialized", "default_delete_policy", cfg.Board.DeletePolicy)
	return env, nil
}

// close releases the repository and the dev log sink.
func (e *runtimeEnv) close(stderr io.Writer) {
	if e.repo != nil {
		if err := e.repo.Close(); err != nil {
			e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
		}
		e.repo = nil
	}
	if err := e.logger.Close(); err != nil && e.logger.shouldLogToSink(e.logger.consoleSink) {
		// Keep TUI shutdown quiet on the terminal when console logging is intentionally muted.
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// stageTemplates maps configured stages onto seed templates.
func stageTemplates(stages []config.StageConfig) []app.StageTemplate {
	out := make([]app.StageTemplate, 0, len(stages))
	for _, stage := range stages {
		out = append(out, app.StageTemplate{
			ID:    stage.ID,
			Title: stage.Title,
			Color: domain.Color(stage.Color),
		})
	}
	return out
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
