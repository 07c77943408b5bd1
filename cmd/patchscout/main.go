// Package main provides the patchscout CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/richinex/patchscout/cli"
	"github.com/richinex/patchscout/config"
	"github.com/richinex/patchscout/internal/logging"
	"github.com/richinex/patchscout/storage"
	"github.com/richinex/patchscout/tools"
)

var (
	// Global flags
	provider     string
	configPath   string
	sessionID    string
	dbPath       string
	chromiumRoot string
	pageSize     int
	maxRounds    int
	logLevel     string
	verbose      bool
	metricsAddr  string
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "patchscout",
		Short: "Find the upstream Chromium change behind a failed upgrade",
		Long: `Patchscout analyses Chromium upgrade failures with a language model that
reads the git history between two versions.

- analyze: classify an error and run the matching analysis
- build-error: find the commit that broke the build
- sync-error: explain why product patches no longer apply
- search: ask a question about the commits in a range

Pass --session to keep a conversation; "continue" resumes the last paged
analysis of that session.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML settings file")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path for sessions (default from settings)")
	rootCmd.PersistentFlags().StringVar(&chromiumRoot, "chromium-root", "", "Chromium src checkout (default from settings)")
	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 0, "Commits per log page")
	rootCmd.PersistentFlags().IntVarP(&maxRounds, "max-rounds", "m", 0, "Maximum model rounds per analysis")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(buildErrorCmd())
	rootCmd.AddCommand(syncErrorCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(fileLogCmd())
	rootCmd.AddCommand(fileShowCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(mcpCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// withApp loads settings, configures logging and metrics, and runs fn with
// an App. The session store is opened only when --session is set.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	settings, err := config.Load(configPath, provider)
	if err != nil {
		return err
	}
	if chromiumRoot != "" {
		settings.Repo.ChromiumRoot = chromiumRoot
	}
	if pageSize > 0 {
		settings.Analysis.PageSize = pageSize
	}
	if maxRounds > 0 {
		settings.Analysis.MaxRounds = maxRounds
	}
	if dbPath != "" {
		settings.Storage.Path = dbPath
	}

	level := logging.ParseLevel(logLevel)
	if logLevel == "" {
		level = logging.ParseLevel(os.Getenv("PATCHSCOUT_LOG_LEVEL"))
	}
	if verbose {
		level = logging.LevelDebug
	}
	logging.Configure(level, os.Stderr)

	if metricsAddr != "" {
		shutdown := serveMetrics(metricsAddr)
		defer shutdown()
	}

	opts := []cli.Option{cli.WithOutput(cmd.OutOrStdout())}
	if sessionID != "" {
		store, err := storage.OpenSqlite(settings.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		opts = append(opts, cli.WithSession(store, sessionID))
	}

	return fn(cmd.Context(), cli.New(settings, opts...))
}

func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logging.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// readText joins args, or reads stdin when the only argument is "-".
func readText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

type rangeFlags struct {
	from string
	to   string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.from, "from", "", "Older Chromium version")
	cmd.Flags().StringVar(&r.to, "to", "", "Newer Chromium version (default: the checkout's chrome/VERSION)")
}

func analyzeCmd() *cobra.Command {
	var versions rangeFlags
	var patches []string

	cmd := &cobra.Command{
		Use:   "analyze [error text | -]",
		Short: "Classify an upgrade error and run the matching analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.Analyze(ctx, app.Range(versions.from, versions.to), text, patches)
			})
		},
	}

	versions.register(cmd)
	cmd.Flags().StringArrayVar(&patches, "patch", nil, "Failed patch file (repeatable)")

	return cmd
}

func buildErrorCmd() *cobra.Command {
	var versions rangeFlags

	cmd := &cobra.Command{
		Use:   "build-error [error text | - | continue]",
		Short: "Find the upstream commit behind a build error",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.BuildError(ctx, app.Range(versions.from, versions.to), text)
			})
		},
	}

	versions.register(cmd)

	return cmd
}

func syncErrorCmd() *cobra.Command {
	var versions rangeFlags
	var patches []string

	cmd := &cobra.Command{
		Use:   "sync-error [error text | -]",
		Short: "Explain why product patches failed to apply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.SyncError(ctx, app.Range(versions.from, versions.to), text, patches)
			})
		},
	}

	versions.register(cmd)
	cmd.Flags().StringArrayVar(&patches, "patch", nil, "Failed patch file (repeatable, default: search the patches directory)")

	return cmd
}

func searchCmd() *cobra.Command {
	var versions rangeFlags

	cmd := &cobra.Command{
		Use:   "search [question | continue]",
		Short: "Ask a question about the commits between two versions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.Search(ctx, app.Range(versions.from, versions.to), strings.Join(args, " "))
			})
		},
	}

	versions.register(cmd)

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				app.ListTools(verboseTools)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <sha>",
		Short: "Show a commit's metadata and filtered diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.RunTool(ctx, tools.ToolGitShow, map[string]interface{}{"sha": args[0]})
			})
		},
	}
}

func logCmd() *cobra.Command {
	var versions rangeFlags
	var page, size int
	var reverse bool
	var after, errorText string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print one page of the commit log between two versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				r := app.Range(versions.from, versions.to)
				return app.RunTool(ctx, tools.ToolChromiumLog, map[string]interface{}{
					"startVersion": r.Start,
					"endVersion":   r.End,
					"page":         page,
					"pageSize":     size,
					"reverse":      reverse,
					"after":        after,
					"error":        errorText,
				})
			})
		},
	}

	versions.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "1-indexed page number")
	cmd.Flags().IntVar(&size, "size", 0, "Commits per page")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "List oldest commits first")
	cmd.Flags().StringVar(&after, "after", "", "Only list commits after this SHA within the page")
	cmd.Flags().StringVar(&errorText, "error", "", "Build error text; commits touching files it names come first")

	return cmd
}

func fileLogCmd() *cobra.Command {
	var versions rangeFlags

	cmd := &cobra.Command{
		Use:   "file-log <file>",
		Short: "List the commits that touched a file between two versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				r := app.Range(versions.from, versions.to)
				return app.RunTool(ctx, tools.ToolChromiumFileLog, map[string]interface{}{
					"startVersion": r.Start,
					"endVersion":   r.End,
					"filename":     args[0],
				})
			})
		},
	}

	versions.register(cmd)

	return cmd
}

func fileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file-show <sha> <file>",
		Short: "Show a commit's changes to one file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.RunTool(ctx, tools.ToolChromiumFileShow, map[string]interface{}{
					"sha":      args[0],
					"filename": args[1],
				})
			})
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				// Any id opens the store; listing does not touch it.
				sessionID = "default"
			}
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.Sessions(ctx)
			})
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the history tools over MCP on stdin and stdout",
		Long: `Runs a Model Context Protocol server so an editor assistant can call the
Chromium history tools. Stdout carries only protocol messages; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *cli.App) error {
				return app.ServeMCP(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), version)
			})
		},
	}
}
