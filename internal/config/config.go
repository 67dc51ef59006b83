package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	HTTP     HTTPConfig     `yaml:"http"`
	Audio    AudioConfig    `yaml:"audio"`
	VAD      VADConfig      `yaml:"vad"`
	Enhancer EnhancerConfig `yaml:"enhancer"`
	Meeting  MeetingConfig  `yaml:"meeting"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains websocket server configuration
type ServerConfig struct {
	Port           int    `yaml:"port"`
	BindAddress    string `yaml:"bind_address"`
	ReadTimeout    int    `yaml:"read_timeout"`     // seconds
	MaxMessageSize int64  `yaml:"max_message_size"` // bytes
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// AudioConfig contains audio frame parameters
type AudioConfig struct {
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	DefaultFormat string `yaml:"default_format"`
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	FallbackThresholdDB float64 `yaml:"fallback_threshold_db"`
	WindowSize          int     `yaml:"window_size"` // frames
	MinAdaptSamples     int     `yaml:"min_adapt_samples"`
	NoiseMarginDB       float64 `yaml:"noise_margin_db"`
}

// EnhancerConfig contains audio enhancement parameters
type EnhancerConfig struct {
	GateThreshold float64 `yaml:"gate_threshold"`
	PeakTarget    float64 `yaml:"peak_target"`
	HighPassAlpha float64 `yaml:"high_pass_alpha"`
}

// MeetingConfig contains turn-taking state machine configuration
type MeetingConfig struct {
	TurnConfidence  float64 `yaml:"turn_confidence"`
	EventLogCap     int     `yaml:"event_log_cap"`
	IdleTimeout     int     `yaml:"idle_timeout"`     // seconds
	CleanupInterval int     `yaml:"cleanup_interval"` // seconds
}

// PipelineConfig contains per-frame processing configuration
type PipelineConfig struct {
	LatencyTargetMs int `yaml:"latency_target_ms"`
	AgentWorkers    int `yaml:"agent_workers"`
	AgentQueueSize  int `yaml:"agent_queue_size"`
}

// AgentConfig contains AI agent backend configuration
type AgentConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Timeout        int    `yaml:"timeout"` // seconds
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
	Language       string `yaml:"language"`
	Voice          string `yaml:"voice"`
	RespondEnabled bool   `yaml:"respond_enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Enhancer.Validate(); err != nil {
		return fmt.Errorf("enhancer config: %w", err)
	}

	if err := c.Meeting.Validate(); err != nil {
		return fmt.Errorf("meeting config: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}

	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates websocket server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if s.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", s.ReadTimeout)
	}

	if s.MaxMessageSize < 1024 {
		return fmt.Errorf("max_message_size must be at least 1024 bytes, got %d", s.MaxMessageSize)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	validRates := map[int]bool{8000: true, 16000: true, 24000: true, 44100: true, 48000: true}
	if !validRates[a.SampleRate] {
		return fmt.Errorf("sample_rate must be one of [8000, 16000, 24000, 44100, 48000], got %d", a.SampleRate)
	}

	if a.Channels < 1 || a.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}

	validFormats := map[string]bool{"pcm16": true, "pcm32": true, "float32": true}
	if !validFormats[a.DefaultFormat] {
		return fmt.Errorf("default_format must be one of [pcm16, pcm32, float32], got '%s'", a.DefaultFormat)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.FallbackThresholdDB >= 0 {
		return fmt.Errorf("fallback_threshold_db must be negative, got %f", v.FallbackThresholdDB)
	}

	if v.WindowSize < 10 || v.WindowSize > 1000 {
		return fmt.Errorf("window_size must be between 10 and 1000 frames, got %d", v.WindowSize)
	}

	if v.MinAdaptSamples < 1 || v.MinAdaptSamples > v.WindowSize {
		return fmt.Errorf("min_adapt_samples must be between 1 and window_size, got %d", v.MinAdaptSamples)
	}

	if v.NoiseMarginDB <= 0 {
		return fmt.Errorf("noise_margin_db must be positive, got %f", v.NoiseMarginDB)
	}

	return nil
}

// Validate validates enhancer configuration
func (e *EnhancerConfig) Validate() error {
	if e.GateThreshold < 0 || e.GateThreshold >= 1 {
		return fmt.Errorf("gate_threshold must be in [0, 1), got %f", e.GateThreshold)
	}

	if e.PeakTarget <= 0 || e.PeakTarget > 1 {
		return fmt.Errorf("peak_target must be in (0, 1], got %f", e.PeakTarget)
	}

	if e.HighPassAlpha <= 0 || e.HighPassAlpha >= 1 {
		return fmt.Errorf("high_pass_alpha must be in (0, 1), got %f", e.HighPassAlpha)
	}

	return nil
}

// Validate validates meeting configuration
func (m *MeetingConfig) Validate() error {
	if m.TurnConfidence < 0 || m.TurnConfidence >= 1 {
		return fmt.Errorf("turn_confidence must be in [0, 1), got %f", m.TurnConfidence)
	}

	if m.EventLogCap < 1 {
		return fmt.Errorf("event_log_cap must be at least 1, got %d", m.EventLogCap)
	}

	if m.IdleTimeout < 1 {
		return fmt.Errorf("idle_timeout must be at least 1 second, got %d", m.IdleTimeout)
	}

	if m.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1 second, got %d", m.CleanupInterval)
	}

	return nil
}

// Validate validates pipeline configuration
func (p *PipelineConfig) Validate() error {
	if p.LatencyTargetMs < 1 {
		return fmt.Errorf("latency_target_ms must be at least 1, got %d", p.LatencyTargetMs)
	}

	if p.AgentWorkers < 1 {
		return fmt.Errorf("agent_workers must be at least 1, got %d", p.AgentWorkers)
	}

	if p.AgentQueueSize < 1 {
		return fmt.Errorf("agent_queue_size must be at least 1, got %d", p.AgentQueueSize)
	}

	return nil
}

// Validate validates agent configuration
func (a *AgentConfig) Validate() error {
	if !a.Enabled {
		return nil
	}

	if a.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty when agent is enabled")
	}

	if a.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", a.Timeout)
	}

	if a.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", a.MaxRetries)
	}

	if a.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", a.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	// Output accepts stdout, stderr or a file path.
	return nil
}

// GetReadTimeout returns the websocket read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetIdleTimeout returns the meeting idle timeout as a time.Duration
func (m *MeetingConfig) GetIdleTimeout() time.Duration {
	return time.Duration(m.IdleTimeout) * time.Second
}

// GetCleanupInterval returns the meeting cleanup interval as a time.Duration
func (m *MeetingConfig) GetCleanupInterval() time.Duration {
	return time.Duration(m.CleanupInterval) * time.Second
}

// GetLatencyTarget returns the frame latency target as a time.Duration
func (p *PipelineConfig) GetLatencyTarget() time.Duration {
	return time.Duration(p.LatencyTargetMs) * time.Millisecond
}

// GetTimeoutDuration returns the agent request timeout as a time.Duration
func (a *AgentConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}
