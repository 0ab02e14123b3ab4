// Command hsrdriver supervises March7thAssistant runs for MCP and HTTP clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hsr-assistant/hsrdriver"
	"github.com/hsr-assistant/hsrdriver/internal/config"
	"github.com/hsr-assistant/hsrdriver/internal/history"
	"github.com/hsr-assistant/hsrdriver/internal/httpapi"
	"github.com/hsr-assistant/hsrdriver/internal/logging"
	hsrmcp "github.com/hsr-assistant/hsrdriver/internal/mcp"
	"github.com/hsr-assistant/hsrdriver/internal/monitor"
	"github.com/hsr-assistant/hsrdriver/internal/runner"
	"github.com/hsr-assistant/hsrdriver/internal/setup"
	"github.com/hsr-assistant/hsrdriver/internal/supervisor"
	"github.com/hsr-assistant/hsrdriver/internal/task"
)

// shutdownTimeout bounds how long an active run may take to be reaped on exit.
const shutdownTimeout = 30 * time.Second

var (
	cfg *config.Config

	flagConfig       string
	flagLogLevel     string
	flagMCPHTTP      string
	flagInstructions bool
	flagAddr         string
	flagPatches      string
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file to load (default "+config.DefaultFile+" in the current directory)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error (default $"+logging.EnvLevel+" or info)")
	rootCmd.PersistentPreRunE = initDriver

	mcpCmd.Flags().StringVar(&flagMCPHTTP, "http", "", "serve streamable HTTP on address instead of stdio (e.g. :9090)")
	mcpCmd.Flags().BoolVar(&flagInstructions, "instructions", false, "print model instructions and exit")
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default http_addr from config)")

	setupCmd.Flags().StringVar(&flagPatches, "patches", "setup", "directory holding the project patches")

	rootCmd.AddCommand(mcpCmd, serveCmd, setupCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("hsrdriver failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "hsrdriver",
	Short:         "Run and supervise March7thAssistant tasks for Honkai: Star Rail",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagInstructions {
			fmt.Print(hsrmcp.Instructions)
			return nil
		}
		return withSupervisor(cmd.Context(), func(ctx context.Context, sup *supervisor.Supervisor, store history.Store) error {
			server := hsrmcp.NewServer(sup, store)
			if flagMCPHTTP != "" {
				handler := mcpsdk.NewStreamableHTTPHandler(
					func(_ *http.Request) *mcpsdk.Server { return server },
					nil,
				)
				return listen(ctx, flagMCPHTTP, handler)
			}
			return server.Run(ctx, &mcpsdk.StdioTransport{})
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr := flagAddr
		if addr == "" {
			addr = cfg.HTTPAddr()
		}
		return withSupervisor(cmd.Context(), func(ctx context.Context, sup *supervisor.Supervisor, _ history.Store) error {
			return listen(ctx, addr, httpapi.New(sup, slog.Default()))
		})
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Clone, patch and sync March7thAssistant and Auto_Simulated_Universe",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		in := &setup.Installer{
			Runner:   &runner.Runner{Env: runner.DefaultEnv},
			PatchDir: flagPatches,
			Logger:   slog.Default(),
		}
		if slog.Default().Enabled(ctx, slog.LevelInfo) {
			in.Verbose = os.Stderr
		}

		if err := in.Prepare(ctx, setup.March7thAssistant, cfg.AssistantDir()); err != nil {
			return err
		}
		if err := in.Prepare(ctx, setup.AutoSimulatedUniverse, cfg.UniverseDir()); err != nil {
			return err
		}
		slog.InfoContext(ctx, "all projects set up")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), hsrdriver.Version)
	},
}

func initDriver(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level := flagLogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	slog.SetDefault(logging.New(logging.Level(level, logging.LevelInfo), os.Stderr))
	return nil
}

// withSupervisor builds the supervisor from the loaded config, runs serve
// until the process is interrupted and stops any active run before returning.
func withSupervisor(parent context.Context, serve func(context.Context, *supervisor.Supervisor, history.Store) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	planner := &task.Planner{
		Python:         cfg.Python(),
		AssistantDir:   cfg.AssistantDir(),
		UniverseDir:    cfg.UniverseDir(),
		UniversePython: config.VenvPython(cfg.UniverseDir()),
	}
	store := history.NewLRUStore(history.DefaultCapacity)
	sup := supervisor.New(planner, supervisor.Options{
		Timeout:     cfg.Timeout(),
		IdleTimeout: cfg.TimeoutNoOutput(),
		Grace:       cfg.TerminateGrace(),
		Rule:        monitor.DefaultErrorRule().With(cfg.BenignErrors...),
		Tail:        os.Stderr,
		History:     store,
		Logger:      slog.Default(),
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		sup.Shutdown(shutdownCtx)
	}()

	slog.InfoContext(ctx, "supervisor ready",
		"assistant_dir", planner.AssistantDir,
		"python", planner.Python,
		"timeout", cfg.Timeout(),
		"timeout_no_output", cfg.TimeoutNoOutput())
	return serve(ctx, sup, store)
}

func listen(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	slog.InfoContext(ctx, "listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
