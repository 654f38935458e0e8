package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hatbot/internal/agent"
	"hatbot/internal/bus"
	"hatbot/internal/channel"
	"hatbot/internal/config"
	"hatbot/internal/conversation"
	"hatbot/internal/domain"
	"hatbot/internal/media"
	"hatbot/internal/metrics"
	"hatbot/internal/perspective"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "hatbot",
		Short: "hatbot: six-hats conversational assistant",
		Long:  "hatbot answers every message from six thinking-hat perspectives and can route tagged prompts to image and video generation services.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.hatbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(gatewayCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and perspective pack directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			packDir := config.ExpandPath(cfg.Perspectives.PackDir)
			if err := os.MkdirAll(packDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "perspectivePack", packDir)
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat (CLI)",
		RunE:  runChat,
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// runtime bundles everything the channels need, wired once per command.
type runtime struct {
	bus       *bus.InMemoryBus
	events    *bus.EventBus
	collector *metrics.MetricsCollector
	orch      *agent.Orchestrator
	settings  *agent.Settings
}

// buildRuntime wires the conversation store, perspective generator, media
// client and orchestrator onto a fresh message bus.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	messageBus := bus.New(100, logger)
	events := bus.NewEventBus(logger)
	collector := metrics.NewMetricsCollector()
	metrics.Observe(events, collector)

	gen := perspective.NewGenerator(logger)
	if dir := config.ExpandPath(cfg.Perspectives.PackDir); dir != "" {
		if err := gen.LoadPack(dir); err != nil {
			logger.Warn("perspective pack load failed, using built-ins", "dir", dir, "err", err)
		}
	}

	mediaClient := media.NewClient(media.Config{
		ImageBase: cfg.Media.ImageBase,
		VideoBase: cfg.Media.VideoBase,
		Timeout:   time.Duration(cfg.Media.TimeoutSeconds) * time.Second,
		Logger:    logger,
	})

	settings := agent.NewSettings(domain.AgentRequestParams{
		NumSteps:   cfg.Generation.NumSteps,
		Guidance:   cfg.Generation.Guidance,
		NumFrames:  cfg.Generation.NumFrames,
		VideoSteps: cfg.Generation.VideoSteps,
		FPS:        cfg.Generation.FPS,
	})

	orch := agent.NewOrchestrator(agent.OrchestratorConfig{
		Store:     conversation.NewStore(),
		Generator: gen,
		Media:     mediaClient,
		Bus:       messageBus,
		Events:    events,
		Settings:  settings,
		Logger:    logger,
		PaceDelay: time.Duration(cfg.General.PaceDelayMs) * time.Millisecond,
	})

	return &runtime{
		bus:       messageBus,
		events:    events,
		collector: collector,
		orch:      orch,
		settings:  settings,
	}, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.bus.Close()

	go rt.orch.Run(ctx)

	cliCh := channel.NewCLI(channel.CLIConfig{
		Settings: rt.settings,
		Logger:   logger,
	})
	return cliCh.Start(ctx, rt.bus)
}

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Start gateway (Telegram + orchestrator)",
		Long:  "Starts the enabled channels and the dispatch orchestrator. Press Ctrl+C to stop.",
		RunE:  runGateway,
	}
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}

	go rt.orch.Run(ctx)

	var telegramCh *channel.Telegram
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		telegramCh = channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Channels.Telegram.Token,
			AllowFrom: cfg.Channels.Telegram.AllowFrom,
			ParseMode: cfg.Channels.Telegram.ParseMode,
			Logger:    logger,
		})
		go func() {
			if err := telegramCh.Start(ctx, rt.bus); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	} else {
		logger.Info("telegram channel disabled")
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.collector)
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	logger.Info("gateway started. Press Ctrl+C to stop.")

	<-ctx.Done()
	logger.Info("shutting down gateway...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		if telegramCh != nil {
			_ = telegramCh.Stop()
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		rt.bus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete", "summary", rt.collector.Summary())
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		shutdownErr = fmt.Errorf("shutdown timed out")
	}

	return shutdownErr
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Info("config", "path", cfgPath, "loaded", false)
				cfg = config.Defaults()
			} else {
				logger.Info("config", "path", cfgPath, "loaded", true)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			mediaClient := media.NewClient(media.Config{
				ImageBase: cfg.Media.ImageBase,
				VideoBase: cfg.Media.VideoBase,
				Timeout:   5 * time.Second,
				Logger:    logger,
			})
			if err := mediaClient.Healthy(ctx); err != nil {
				logger.Info("media services", "healthy", false, "err", err)
			} else {
				logger.Info("media services", "healthy", true)
			}

			logger.Info("hatbot", "version", version)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Channels.Telegram.Token != "" {
				cfg.Channels.Telegram.Token = "***"
			}
			data, _ := json.MarshalIndent(cfg, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pack",
		Short: "Show the perspective pack directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				cfg = config.Defaults()
			}
			fmt.Println(filepath.Clean(config.ExpandPath(cfg.Perspectives.PackDir)))
			return nil
		},
	})

	return cmd
}
