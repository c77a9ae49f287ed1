// Package main is the entry point for the strand demo server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/strandhttp/strand"
	"github.com/strandhttp/strand/internal/config"
	"github.com/strandhttp/strand/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags.configPath, logger)
	app := buildApp(cfg, logger)

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("STRAND_CONFIG_PATH", ""),
		"Path to configuration file (optional)")
	logLevel := flag.String("log-level", getEnvOrDefault("STRAND_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("STRAND_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("strandd version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadConfig loads and validates the configuration, falling back to
// defaults when no path is given.
func loadConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting strandd",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	if configPath == "" {
		return config.DefaultConfig()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load configuration", observability.Error(err))
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", observability.Error(err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		observability.String("address", cfg.Server.Address),
		observability.Int("port", cfg.Server.Port),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled),
		observability.Bool("metrics", cfg.Observability.Metrics.Enabled),
	)
	return cfg
}

// buildApp creates the application and registers the demo routes.
func buildApp(cfg *config.Config, logger observability.Logger) *strand.App {
	app := strand.New(
		strand.WithConfig(cfg),
		strand.WithLogger(logger),
	)

	app.Get("/", func(req *strand.Request, res *strand.Response) {
		res.WriteHeader("Content-Type", "application/json")
		res.End([]byte(fmt.Sprintf(`{"service":"strandd","version":%q}`, version)))
	})

	app.Get("/greet/{name}", func(req *strand.Request, res *strand.Response) {
		res.WriteHeader("Content-Type", "text/plain")
		res.End([]byte("hello, " + req.Param(0)))
	})

	app.Post("/echo", func(req *strand.Request, res *strand.Response) {
		var body []byte
		res.OnData(func(chunk []byte, last bool) {
			body = append(body, chunk...)
			if last {
				if ct := req.ContentType(); ct != "" {
					res.WriteHeader("Content-Type", ct)
				}
				res.End(body)
			}
		})
	})

	app.WebSocket("/ws/chat/{room}", strand.WebSocketHandlers{
		Open: func(ws *strand.Conn) {
			ws.Subscribe("chat")
			_ = ws.SendText("welcome")
		},
		Message: func(ws *strand.Conn, message []byte, binary bool) {
			ws.Publish("chat", message, binary)
		},
	})

	return app
}

// run starts the app and blocks until a shutdown signal arrives.
func run(app *strand.App, configPath string, logger observability.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := startConfigWatcher(configPath, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal",
			observability.String("signal", sig.String()),
		)
		cancel()
	}()

	err := app.Listen(ctx)

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err != nil {
		logger.Error("server exited with error", observability.Error(err))
		os.Exit(1)
	}
}

// startConfigWatcher watches the config file so operators see changes
// land. Listener settings still require a restart; the watcher logs the
// reload so the gap is visible.
func startConfigWatcher(configPath string, logger observability.Logger) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, func(newCfg *config.Config) {
		logger.Info("configuration reloaded; listener changes take effect on restart",
			observability.Int("port", newCfg.Server.Port),
			observability.String("log_level", newCfg.Observability.Logging.Level),
		)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(context.Background()); err != nil {
		logger.Warn("failed to start config watcher", observability.Error(err))
	}
	return watcher
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
