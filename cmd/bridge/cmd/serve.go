// Package cmd implements CLI commands for the Komari bridge.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"komari-bridge/internal/cache"
	"komari-bridge/internal/client/komari"
	"komari-bridge/internal/config"
	"komari-bridge/internal/model"
	"komari-bridge/internal/server"
	"komari-bridge/internal/service"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动桥接服务",
	Long: `启动完整的桥接服务，包括：
1. 周期性从 Komari 拉取实时状态并与服务器名录合并
2. 通过 REST API 提供服务器列表、分组、监控历史与服务状态
3. 通过 WebSocket 推送每轮合并后的状态快照`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe executes the serve command logic.
func runServe(cmd *cobra.Command, args []string) {
	configPath := GetConfigFile()

	// Step 1: Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		tmpLogger := setupLogger("error", "console")
		tmpLogger.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		fmt.Fprintf(os.Stderr, "❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Initialize logger with configuration
	// Command line --log-level overrides config file setting
	logLevel := cfg.Logging.Level
	if GetLogLevel() != "info" { // If explicitly set via command line
		logLevel = GetLogLevel()
	}
	logger := setupLogger(logLevel, cfg.Logging.Format)
	logger.Info().
		Str("version", Version).
		Str("endpoint", cfg.Komari.Endpoint).
		Str("listen", cfg.Server.Listen).
		Msg("starting komari bridge")

	// Step 3: Build the pipeline
	client := komari.NewClient(&cfg.Komari, &cfg.HTTP.Retry, logger)
	directory := cache.NewDirectory(client.GetNodes, cfg.Poll.DirectoryTTL, logger)
	notes := cache.NewNoteStore()
	normalizer := service.NewNormalizer(directory, logger)
	query := service.NewQuery(client, directory, cfg.Poll.RecordCount, cfg.Poll.RecordHours, logger)

	hub := server.NewHub(logger)
	poller := service.NewPoller(client, normalizer, cfg.Poll.Interval, func(snapshot model.Snapshot) {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			logger.Error().Err(err).Msg("failed to marshal snapshot")
			return
		}
		hub.Broadcast(payload)
	}, logger)

	handlers := server.NewHandlers(poller, query, client, notes, cfg.Site, Version, logger)
	srv := server.New(cfg.Server, handlers, hub, logger)

	// Step 4: Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(ctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("bridge exited with error")
		fmt.Fprintf(os.Stderr, "❌ 服务异常退出: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Msg("bridge stopped")
}

// setupLogger creates a zerolog logger with the specified level and format.
// It sets the timezone to Asia/Shanghai for all log timestamps.
func setupLogger(level string, format string) zerolog.Logger {
	// Set log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Load Asia/Shanghai timezone for log timestamps
	tz, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		tz = time.Local
	}

	// Set timezone for all timestamps
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().In(tz)
	}

	// Select output format based on configuration
	var output io.Writer
	if format == "json" {
		// JSON format - structured logging for log aggregation systems
		output = os.Stderr
	} else {
		// Console format - human-readable output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
			NoColor:    false,
		}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
