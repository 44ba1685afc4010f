package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	serveradapter "github.com/hylla/dealboard/internal/adapters/server"
	servercommon "github.com/hylla/dealboard/internal/adapters/server/common"
	"github.com/hylla/dealboard/internal/app"
	"github.com/hylla/dealboard/internal/domain"
	"github.com/hylla/dealboard/internal/platform"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newServeCommand constructs the serve subcommand.
func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "serve", func(ctx context.Context, env *runtimeEnv) error {
				cfg := serveradapter.Config{
					HTTPBind:      env.cfg.Server.HTTPBind,
					APIEndpoint:   env.cfg.Server.APIEndpoint,
					MCPEndpoint:   env.cfg.Server.MCPEndpoint,
					ServerName:    env.appName,
					ServerVersion: version,
				}
				if cmd.Flags().Changed("http") {
					cfg.HTTPBind = httpBind
				}
				if cmd.Flags().Changed("api-endpoint") {
					cfg.APIEndpoint = apiEndpoint
				}
				if cmd.Flags().Changed("mcp-endpoint") {
					cfg.MCPEndpoint = mcpEndpoint
				}

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
					Board:  servercommon.NewAppServiceAdapter(env.svc),
					Ready:  env.repo.Ping,
					Logger: env.logger,
				})
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (default from config)")
	return cmd
}

// newExportCommand constructs the export subcommand.
func newExportCommand(opts *globalOptions) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the board as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "export", func(ctx context.Context, env *runtimeEnv) error {
				snap, err := env.svc.ExportSnapshot(ctx)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				encoded, err := encodeSnapshot(snap)
				if err != nil {
					return err
				}
				if outPath == "-" {
					if _, err := cmd.OutOrStdout().Write(encoded); err != nil {
						return fmt.Errorf("write snapshot to stdout: %w", err)
					}
					return nil
				}
				return writeSnapshotFile(outPath, encoded)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCommand constructs the import subcommand.
func newImportCommand(opts *globalOptions) *cobra.Command {
	var (
		inPath string
		backup bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the board with a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" {
				return fmt.Errorf("--in is required")
			}
			content, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var snap app.Snapshot
			if err := json.Unmarshal(content, &snap); err != nil {
				return fmt.Errorf("decode snapshot json: %w", err)
			}
			return withRuntime(cmd, opts, "import", func(ctx context.Context, env *runtimeEnv) error {
				if backup {
					path, err := backupBoard(ctx, env, time.Now().UTC())
					if err != nil {
						return err
					}
					env.logger.Info("pre-import backup written", "path", path)
				}
				if err := env.svc.ImportSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	cmd.Flags().BoolVar(&backup, "backup", true, "write the current board to the snapshots dir before importing")
	return cmd
}

// newPathsCommand constructs the paths subcommand.
func newPathsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{
				AppName: opts.appName,
				DevMode: opts.devMode,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "snapshots: %s\n", paths.SnapshotDir)
			return nil
		},
	}
}

// newBoardCommand constructs the board subcommand.
func newBoardCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print the board as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, "board", func(ctx context.Context, env *runtimeEnv) error {
				board, err := env.svc.Board(ctx)
				if err != nil {
					return fmt.Errorf("read board: %w", err)
				}
				renderBoardTable(cmd, board)
				return nil
			})
		},
	}
}

// newMoveCommand constructs the move subcommand.
func newMoveCommand(opts *globalOptions) *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "move <card-id> <stage-id> <index>",
		Short: "Move one card to a stage position",
		Long: `Move one card to a stage position.

The index is read against the destination stage with the card already taken out,
and is clamped to that stage's bounds.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("parse index %q: %w", args[2], err)
			}
			return withRuntime(cmd, opts, "move", func(ctx context.Context, env *runtimeEnv) error {
				board, err := env.svc.Board(ctx)
				if err != nil {
					return fmt.Errorf("read board: %w", err)
				}
				var drag domain.Drag
				if err := drag.Begin(board, args[0]); err != nil {
					return fmt.Errorf("pick up card %q: %w", args[0], err)
				}
				req, err := drag.Drop(args[1], index)
				if err != nil {
					return err
				}
				ctx = app.WithMutationActor(ctx, app.MutationActor{ActorID: actorID, ActorType: app.ActorTypeUser})
				result, err := env.svc.MoveCard(ctx, req)
				if err != nil {
					return fmt.Errorf("move card: %w", err)
				}
				out := cmd.OutOrStdout()
				if !result.Changed {
					_, _ = fmt.Fprintf(out, "%s already at %s[%d]\n", result.Card.ID, result.To.StageID, result.To.Index)
					return nil
				}
				_, _ = fmt.Fprintf(out, "moved %s from %s[%d] to %s[%d]\n", result.Card.ID, result.From.StageID, result.From.Index, result.To.StageID, result.To.Index)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "cli", "actor id recorded on the change event")
	return cmd
}

// newRenameCommand constructs the rename subcommand.
func newRenameCommand(opts *globalOptions) *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "rename <pipeline-name>",
		Short: "Rename the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, "rename", func(ctx context.Context, env *runtimeEnv) error {
				ctx = app.WithMutationActor(ctx, app.MutationActor{ActorID: actorID, ActorType: app.ActorTypeUser})
				name, err := env.svc.RenamePipeline(ctx, args[0])
				if err != nil {
					return fmt.Errorf("rename pipeline: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pipeline renamed to %q\n", name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "cli", "actor id recorded on the change event")
	return cmd
}

// renderBoardTable prints every stage and card with pipeline totals.
func renderBoardTable(cmd *cobra.Command, board *domain.Board) {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(board.Name())
	tw.AppendHeader(table.Row{"Stage", "#", "Card ID", "Title", "Company", "Value", "Priority", "Temp", "Msgs"})
	for _, stage := range board.Stages() {
		if len(stage.Cards) == 0 {
			tw.AppendRow(table.Row{stage.ID, "", "", "(empty)", "", "", "", "", ""})
		}
		for idx, card := range stage.Cards {
			tw.AppendRow(table.Row{
				stage.ID,
				idx,
				card.ID,
				card.Title,
				card.Company,
				formatCents(card.ValueCents),
				card.Priority,
				card.Temperature,
				card.MessageCount,
			})
		}
		tw.AppendSeparator()
	}
	summary := board.Summary()
	tw.AppendFooter(table.Row{
		"Total",
		summary.TotalCards,
		"",
		"",
		"",
		formatCents(summary.ValueCents),
		"",
		fmt.Sprintf("%d hot", summary.HotLeads),
		summary.Messages,
	})
	tw.Render()
}

// backupBoard writes the live board into the snapshots dir beside the database.
func backupBoard(ctx context.Context, env *runtimeEnv, now time.Time) (string, error) {
	snap, err := env.svc.ExportSnapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("export backup snapshot: %w", err)
	}
	encoded, err := encodeSnapshot(snap)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(filepath.Dir(env.cfg.Database.Path), "snapshots")
	path := filepath.Join(dir, fmt.Sprintf("pre-import-%s.json", now.Format("20060102T150405Z")))
	if err := writeSnapshotFile(path, encoded); err != nil {
		return "", err
	}
	return path, nil
}

// encodeSnapshot renders one snapshot as indented JSON.
func encodeSnapshot(snap app.Snapshot) ([]byte, error) {
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot json: %w", err)
	}
	return append(encoded, '\n'), nil
}

// writeSnapshotFile writes encoded snapshot bytes, creating parent dirs.
func writeSnapshotFile(path string, encoded []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	return nil
}

// formatCents renders a deal value as whole dollars with cents when present.
func formatCents(cents int64) string {
	dollars, rem := cents/100, cents%100
	if rem == 0 {
		return "$" + humanize.Comma(dollars)
	}
	return fmt.Sprintf("$%s.%02d", humanize.Comma(dollars), rem)
}
