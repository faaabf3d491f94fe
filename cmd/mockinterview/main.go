// Command mockinterview runs the mock interview server: the browser UI API,
// the WebSocket event stream and the background evaluation pipeline.
//
// Usage:
//
//	mockinterview [-config path] [-env-file .env] [-listen :8080] [-log-format text|json]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MrWong99/mockinterview/internal/app"
	"github.com/MrWong99/mockinterview/internal/config"
	"github.com/MrWong99/mockinterview/internal/observe"
)

// version is stamped with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// flags are the command-line settings. Everything else lives in the YAML
// file and the environment.
type flags struct {
	configPath string
	envFile    string
	listenAddr string
	logFormat  string
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	set := flag.NewFlagSet("mockinterview", flag.ContinueOnError)
	set.SetOutput(stderr)
	set.StringVar(&f.configPath, "config", "", "YAML configuration file; built-in defaults when empty")
	set.StringVar(&f.envFile, "env-file", ".env", "dotenv file with API keys; ignored when missing")
	set.StringVar(&f.listenAddr, "listen", "", "override server.listen_addr")
	set.StringVar(&f.logFormat, "log-format", "text", "log output format: text or json")
	if err := set.Parse(args); err != nil {
		return flags{}, err
	}
	if f.logFormat != "text" && f.logFormat != "json" {
		return flags{}, fmt.Errorf("invalid -log-format %q: want text or json", f.logFormat)
	}
	return f, nil
}

func run(args []string, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "mockinterview:", err)
		return 2
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintln(stderr, "mockinterview:", err)
		return 1
	}

	slog.SetDefault(newLogger(stderr, cfg.Server.LogLevel, f.logFormat))
	slog.Info("mockinterview starting",
		"version", version,
		"config", f.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"storage", cfg.Storage.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    observe.DefaultServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := app.BuildProviders(cfg, reg, observe.DefaultMetrics())
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	logProviderSummary(cfg, providers)

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	if err := application.Run(ctx); err != nil {
		slog.Error("server stopped with error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadConfig reads the dotenv file, the YAML file (or the defaults), the
// flag overrides and finally the environment, in that order of precedence
// from lowest to highest.
func loadConfig(f flags) (*config.Config, error) {
	if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", f.envFile, err)
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %q not found; start from configs/mockinterview.example.yaml", f.configPath)
			}
			return nil, err
		}
	}
	if f.listenAddr != "" {
		cfg.Server.ListenAddr = f.listenAddr
	}
	config.ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

func newLogger(w io.Writer, level config.LogLevel, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// logProviderSummary reports which external services the interview will use.
func logProviderSummary(cfg *config.Config, ps *app.Providers) {
	summarise := func(kind string, entry config.ProviderEntry, active bool) {
		if !active {
			slog.Warn("provider not configured; feature disabled", "kind", kind)
			return
		}
		slog.Info("provider active", "kind", kind, "name", entry.Name, "model", entry.Model, "fallbacks", len(entry.Fallbacks))
	}
	summarise("llm", cfg.Providers.LLM, ps.LLM != nil)
	summarise("tts", cfg.Providers.TTS, ps.TTS != nil)
}
