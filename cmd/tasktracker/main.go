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

	"github.com/spf13/cobra"

	"tasktracker/internal/app"
	"tasktracker/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type overrides struct {
	configPath   string
	addr         string
	storage      string
	dataPath     string
	historyLimit int
	logLevel     string
}

func newRootCommand() *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:          "tasktracker",
		Short:        "Serve the task, epic and subtask tracker over HTTP",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&o.addr, "addr", "", "HTTP listen address (TODO_ADDR)")
	flags.StringVar(&o.storage, "storage", "", "Storage driver: csv, sqlite or memory (TODO_STORAGE)")
	flags.StringVar(&o.dataPath, "data", "", "Path to the data file (TODO_DATA_PATH)")
	flags.IntVar(&o.historyLimit, "history-limit", 0, "Keep only the N most recent history entries, 0 for no limit (TODO_HISTORY_LIMIT)")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error (TODO_LOG_LEVEL)")

	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tasktracker %s\n", version)
		},
	}
}

// loadConfig reads file and environment settings, then applies the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command, o overrides) (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.HTTP.Addr = o.addr
	}
	if flags.Changed("storage") {
		cfg.Storage.Driver = o.storage
		if !flags.Changed("data") {
			cfg.Storage.Path = ""
		}
	}
	if flags.Changed("data") {
		cfg.Storage.Path = o.dataPath
	}
	if flags.Changed("history-limit") {
		cfg.History.Limit = o.historyLimit
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	return config.Normalize(cfg)
}

func serve(ctx context.Context, cfg config.Config) error {
	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	logger.Info("task tracker", slog.String("version", version))

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("unable to start", slog.String("error", err.Error()))
		return err
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: application.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := application.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	logger.Info("server stopped")
	return runErr
}
