package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/richmiles/platform-infra/internal/client"
	"github.com/richmiles/platform-infra/internal/config"
	"github.com/richmiles/platform-infra/internal/metrics"
)

var Version = "0.1.0"

type app struct {
	getenv       func(string) string
	stdout       io.Writer
	stderr       io.Writer
	newCollector func(cfg config.Config, logger *slog.Logger) *metrics.Collector
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	a := &app{
		getenv: os.Getenv,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	code := a.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run dispatches the subcommand and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	command := "send"
	if len(args) > 0 && !isFlag(args[0]) {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "send":
		err = a.runSend(ctx, args)
	case "print-payload":
		err = a.runPrintPayload(ctx, args)
	case "version", "--version", "-v":
		fmt.Fprintln(a.stdout, Version)
		return 0
	default:
		err = fmt.Errorf("unknown command %q", command)
	}

	if err != nil {
		fmt.Fprintf(a.stderr, "metrics collector error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) runSend(ctx context.Context, args []string) error {
	cfg, logger, err := a.loadConfig("send", args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	payload, err := a.collector(cfg, logger).Collect(ctx, cfg.HostName)
	if err != nil {
		return err
	}

	cli := client.NewClientWithOptions(cfg, client.Options{UserAgent: "metrics-collector/" + Version})
	resp, err := cli.SendPayload(ctx, payload)
	if err != nil {
		return err
	}

	logger.Debug("payload sent", "request_id", resp.RequestID, "containers", len(payload.Containers))
	fmt.Fprintf(a.stdout, "metrics ingest ok (%d)\n", resp.StatusCode)
	return nil
}

func (a *app) runPrintPayload(ctx context.Context, args []string) error {
	cfg, logger, err := a.loadConfig("print-payload", args)
	if err != nil {
		return err
	}

	payload, err := a.collector(cfg, logger).Collect(ctx, cfg.HostName)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(a.stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func (a *app) loadConfig(name string, args []string) (config.Config, *slog.Logger, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "", "optional YAML config file")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, nil, err
	}

	cfg, err := config.Load(*configPath, a.getenv)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, buildLogger(cfg, a.stderr), nil
}

func (a *app) collector(cfg config.Config, logger *slog.Logger) *metrics.Collector {
	if a.newCollector != nil {
		return a.newCollector(cfg, logger)
	}
	return metrics.NewCollector(metrics.Options{
		ProcRoot:   cfg.ProcRoot,
		DiskPath:   cfg.DiskPath,
		DockerBin:  cfg.DockerBin,
		SampleWait: cfg.SampleWait,
		Logger:     logger,
	})
}

func buildLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-' && arg != "-v" && arg != "--version"
}
