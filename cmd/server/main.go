package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shital16-hub/teams/internal/agent"
	"github.com/Shital16-hub/teams/internal/audio"
	"github.com/Shital16-hub/teams/internal/config"
	"github.com/Shital16-hub/teams/internal/meeting"
	"github.com/Shital16-hub/teams/internal/metrics"
	"github.com/Shital16-hub/teams/internal/pipeline"
	"github.com/Shital16-hub/teams/internal/router"
	"github.com/Shital16-hub/teams/internal/server"
	"github.com/Shital16-hub/teams/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "teams-audio-bridge"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("ws_port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("vad_fallback_threshold_db", cfg.VAD.FallbackThresholdDB),
		slog.Float64("turn_confidence", cfg.Meeting.TurnConfidence),
		slog.Int("latency_target_ms", cfg.Pipeline.LatencyTargetMs),
		slog.Bool("agent_enabled", cfg.Agent.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize voice activity detector
	detector, err := vad.NewDetector(vad.Config{
		FallbackThresholdDB: cfg.VAD.FallbackThresholdDB,
		WindowSize:          cfg.VAD.WindowSize,
		MinAdaptSamples:     cfg.VAD.MinAdaptSamples,
		NoiseMarginDB:       cfg.VAD.NoiseMarginDB,
	}, logger)
	if err != nil {
		logger.Error("Failed to create VAD detector", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize audio enhancer
	enhancer := audio.NewEnhancer(audio.EnhancerConfig{
		GateThreshold: cfg.Enhancer.GateThreshold,
		PeakTarget:    cfg.Enhancer.PeakTarget,
		HighPassAlpha: cfg.Enhancer.HighPassAlpha,
	}, logger)

	// Initialize meeting manager
	meetingMgr, err := meeting.NewManager(meeting.Config{
		TurnConfidence:  cfg.Meeting.TurnConfidence,
		EventLogCap:     cfg.Meeting.EventLogCap,
		IdleTimeout:     cfg.Meeting.GetIdleTimeout(),
		CleanupInterval: cfg.Meeting.GetCleanupInterval(),
	}, logger)
	if err != nil {
		logger.Error("Failed to create meeting manager", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Detector windows are keyed by meeting, drop them with the meeting
	meetingMgr.SetCleanupHook(func(meetingID string) {
		detector.RemoveMeeting(meetingID)
		appMetrics.RecordMeetingEnded()
		appMetrics.SetActiveMeetings(meetingMgr.ActiveMeetings())
	})
	meetingMgr.Start()

	// Initialize connection router
	audioRouter := router.NewRouter(meetingMgr, logger)

	// Initialize AI agent provider
	var provider agent.Provider
	if cfg.Agent.Enabled {
		client, err := agent.NewClient(agent.Config{
			BaseURL:       cfg.Agent.BaseURL,
			APIKey:        cfg.Agent.APIKey,
			Timeout:       cfg.Agent.GetTimeoutDuration(),
			MaxRetries:    cfg.Agent.MaxRetries,
			MaxConcurrent: cfg.Agent.MaxConcurrent,
			Language:      cfg.Agent.Language,
			Voice:         cfg.Agent.Voice,
		})
		if err != nil {
			logger.Error("Failed to create agent client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		provider = client
		logger.Info("AI agent client initialized",
			slog.String("base_url", cfg.Agent.BaseURL),
			slog.Int("max_concurrent", cfg.Agent.MaxConcurrent),
		)
	} else {
		provider = agent.NewDemo(0)
		logger.Info("AI agent disabled, using demo provider")
	}

	// Initialize audio pipeline
	processor, err := pipeline.NewProcessor(pipeline.Config{
		LatencyTarget:  cfg.Pipeline.GetLatencyTarget(),
		AgentWorkers:   cfg.Pipeline.AgentWorkers,
		AgentQueueSize: cfg.Pipeline.AgentQueueSize,
		AgentTimeout:   cfg.Agent.GetTimeoutDuration(),
		RespondEnabled: cfg.Agent.RespondEnabled,
	}, detector, enhancer, meetingMgr, audioRouter, provider, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create audio pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}
	processor.Start()
	logger.Info("Audio pipeline started",
		slog.Int("agent_workers", cfg.Pipeline.AgentWorkers),
		slog.Int("agent_queue_size", cfg.Pipeline.AgentQueueSize),
	)

	// Initialize websocket server
	wsServer := server.NewWSServer(cfg.Server, cfg.Audio, audioRouter, meetingMgr, processor, appMetrics, logger)
	logger.Info("Websocket server initialized")

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, meetingMgr, audioRouter, wsServer, processor, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start websocket server
	if err := wsServer.Start(); err != nil {
		logger.Error("Failed to start websocket server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("ws_address", fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)),
	)

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop websocket server (close client connections)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := wsServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping websocket server", slog.String("error", err.Error()))
	}

	// Stop pipeline (drain pending agent jobs)
	processor.Stop()

	// Stop meeting manager (cleanup loop and session teardown)
	meetingMgr.Stop()

	// Close agent provider
	if err := provider.Close(); err != nil {
		logger.Error("Error closing agent provider", slog.String("error", err.Error()))
	}

	// Get final statistics
	stats := wsServer.GetStatistics()
	logger.Info("Final server statistics",
		slog.Uint64("messages_received", stats.MessagesReceived),
		slog.Uint64("messages_handled", stats.MessagesHandled),
		slog.Uint64("protocol_errors", stats.ProtocolErrors),
		slog.Uint64("dropped_agent_jobs", processor.DroppedJobs()),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
