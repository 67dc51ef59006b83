package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shital16-hub/teams/internal/agent"
	"github.com/Shital16-hub/teams/internal/audio"
	"github.com/Shital16-hub/teams/internal/meeting"
	"github.com/Shital16-hub/teams/internal/metrics"
	"github.com/Shital16-hub/teams/internal/router"
	"github.com/Shital16-hub/teams/internal/vad"
)

// Config contains pipeline configuration
type Config struct {
	LatencyTarget  time.Duration
	AgentWorkers   int
	AgentQueueSize int
	AgentTimeout   time.Duration
	RespondEnabled bool
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		LatencyTarget:  250 * time.Millisecond,
		AgentWorkers:   2,
		AgentQueueSize: 32,
		AgentTimeout:   30 * time.Second,
		RespondEnabled: true,
	}
}

// InboundAudio is one transport-encoded audio message entering the pipeline
type InboundAudio struct {
	MeetingID     string
	RoomName      string
	ParticipantID string
	ConnID        string
	Payload       []byte
	Format        string
	SampleRate    int
	Channels      int
}

// Result reports the outcome of processing one inbound audio message
type Result struct {
	VoiceDetected    bool    `json:"voice_detected"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
	Forwarded        bool    `json:"forwarded"`
}

// MeetingTracker is the turn-taking surface consumed by the pipeline
type MeetingTracker interface {
	VoiceActivity(meetingID, participantID string, isSpeaking bool, confidence float64) (*meeting.ActivityResult, error)
}

// AudioRouter is the fan-out surface consumed by the pipeline
type AudioRouter interface {
	RouteAudio(originID string, payload []byte) (*router.Delivery, error)
	Broadcast(roomName string, payload []byte) *router.Delivery
}

type agentJob struct {
	meetingID     string
	roomName      string
	participantID string
	wav           []byte
}

// agentResponse is broadcast to the room after the agent replies
type agentResponse struct {
	Type          string `json:"type"`
	MeetingID     string `json:"meeting_id"`
	ParticipantID string `json:"participant_id"`
	Transcript    string `json:"transcript"`
	ResponseText  string `json:"response_text,omitempty"`
	AudioBase64   string `json:"audio_base64,omitempty"`
}

// Processor runs the per-frame intake path. Agent calls happen on worker
// goroutines fed by a bounded queue, never on the frame path itself and
// never while meeting state is locked.
type Processor struct {
	config   Config
	detector *vad.Detector
	enhancer *audio.Enhancer
	meetings MeetingTracker
	router   AudioRouter
	provider agent.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger

	jobs        chan agentJob
	done        chan struct{}
	wg          sync.WaitGroup
	droppedJobs atomic.Uint64
}

// NewProcessor creates a pipeline processor. Metrics may be nil.
func NewProcessor(
	config Config,
	detector *vad.Detector,
	enhancer *audio.Enhancer,
	meetings MeetingTracker,
	audioRouter AudioRouter,
	provider agent.Provider,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Processor, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}
	if enhancer == nil {
		return nil, fmt.Errorf("enhancer cannot be nil")
	}
	if meetings == nil {
		return nil, fmt.Errorf("meeting tracker cannot be nil")
	}
	if audioRouter == nil {
		return nil, fmt.Errorf("router cannot be nil")
	}

	if config.LatencyTarget <= 0 {
		config.LatencyTarget = 250 * time.Millisecond
	}
	if config.AgentWorkers <= 0 {
		config.AgentWorkers = 2
	}
	if config.AgentQueueSize <= 0 {
		config.AgentQueueSize = 32
	}
	if config.AgentTimeout <= 0 {
		config.AgentTimeout = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		config:   config,
		detector: detector,
		enhancer: enhancer,
		meetings: meetings,
		router:   audioRouter,
		provider: provider,
		metrics:  m,
		logger:   logger,
		jobs:     make(chan agentJob, config.AgentQueueSize),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the agent worker pool
func (p *Processor) Start() {
	for i := 0; i < p.config.AgentWorkers; i++ {
		p.wg.Add(1)
		go p.agentWorker(i)
	}

	p.logger.Info("Pipeline started",
		slog.Int("agent_workers", p.config.AgentWorkers),
		slog.Duration("latency_target", p.config.LatencyTarget),
	)
}

// Stop shuts down the worker pool, draining queued jobs
func (p *Processor) Stop() {
	close(p.done)
	p.wg.Wait()
}

// ProcessAudio runs one inbound audio message through the full intake path:
// decode, VAD, turn tracking, enhancement, peer fan-out and agent queueing.
// Only a malformed payload is an error; everything past decoding degrades
// rather than failing the frame.
func (p *Processor) ProcessAudio(ctx context.Context, req InboundAudio) (*Result, error) {
	startTime := time.Now()

	if p.metrics != nil {
		p.metrics.RecordFrameReceived()
	}

	format, err := audio.ParseFormat(req.Format)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordMalformedFrame()
		}
		return nil, fmt.Errorf("%w: %s", audio.ErrMalformedAudio, req.Format)
	}

	frame, err := audio.Decode(req.Payload, format, req.SampleRate, req.Channels)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordMalformedFrame()
		}
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	detection := p.detector.Detect(frame, req.MeetingID)
	if p.metrics != nil {
		p.metrics.RecordVADDecision(detection.VoiceDetected, detection.Confidence)
	}

	p.applyVoiceActivity(req, detection)

	outbound := req.Payload
	if detection.VoiceDetected {
		enhanced := p.enhancer.Enhance(frame)
		if p.metrics != nil {
			p.metrics.RecordFrameEnhanced()
		}

		// Re-encode the enhanced frame for the peers; fall back to the
		// original payload if encoding fails.
		if encoded, err := audio.Encode(enhanced, format); err == nil {
			outbound = encoded
		} else {
			p.logger.Warn("Failed to encode enhanced frame",
				slog.String("meeting_id", req.MeetingID),
				slog.String("error", err.Error()),
			)
		}
		frame = enhanced
	}

	forwarded := false
	if req.ConnID != "" {
		if delivery, err := p.router.RouteAudio(req.ConnID, outbound); err == nil {
			forwarded = delivery.Delivered > 0
			if p.metrics != nil {
				p.metrics.RecordDelivery(delivery.Delivered, delivery.Missed)
			}
		} else {
			p.logger.Warn("Audio routing failed",
				slog.String("conn_id", req.ConnID),
				slog.String("error", err.Error()),
			)
		}
	}

	if detection.VoiceDetected && p.provider != nil {
		if p.enqueueAgentJob(req, frame) {
			forwarded = true
		}
	}

	elapsed := time.Since(startTime)
	exceeded := elapsed > p.config.LatencyTarget
	if exceeded {
		p.logger.Warn("Frame processing exceeded latency target",
			slog.String("meeting_id", req.MeetingID),
			slog.Duration("elapsed", elapsed),
			slog.Duration("target", p.config.LatencyTarget),
		)
	}
	if p.metrics != nil {
		p.metrics.RecordFrameProcessed(elapsed.Seconds(), exceeded)
	}

	return &Result{
		VoiceDetected:    detection.VoiceDetected,
		Confidence:       detection.Confidence,
		ProcessingTimeMs: float64(elapsed.Microseconds()) / 1000.0,
		Forwarded:        forwarded,
	}, nil
}

// DroppedJobs reports how many agent jobs were dropped on queue saturation
func (p *Processor) DroppedJobs() uint64 {
	return p.droppedJobs.Load()
}

// applyVoiceActivity feeds the VAD decision into the turn machine. An
// unknown meeting is logged and skipped; audio keeps flowing to the peers
// regardless of turn-tracking state.
func (p *Processor) applyVoiceActivity(req InboundAudio, detection vad.Result) {
	if req.MeetingID == "" || req.ParticipantID == "" {
		return
	}

	result, err := p.meetings.VoiceActivity(req.MeetingID, req.ParticipantID, detection.VoiceDetected, detection.Confidence)
	if err != nil {
		p.logger.Warn("Voice activity not applied",
			slog.String("meeting_id", req.MeetingID),
			slog.String("participant_id", req.ParticipantID),
			slog.String("error", err.Error()),
		)
		return
	}

	if p.metrics != nil {
		if result.TurnStarted {
			p.metrics.RecordTurnStarted()
		}
		if result.TurnClosed {
			p.metrics.RecordTurnClosed(result.ClosedTurnDuration.Seconds())
		}
	}
}

// enqueueAgentJob hands a speech frame to the agent workers. The queue is
// bounded; a saturated queue drops the job and counts it.
func (p *Processor) enqueueAgentJob(req InboundAudio, frame *audio.Frame) bool {
	wav, err := audio.EncodeWAV(frame)
	if err != nil {
		p.logger.Warn("Failed to encode frame for agent",
			slog.String("meeting_id", req.MeetingID),
			slog.String("error", err.Error()),
		)
		return false
	}

	job := agentJob{
		meetingID:     req.MeetingID,
		roomName:      req.RoomName,
		participantID: req.ParticipantID,
		wav:           wav,
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.droppedJobs.Add(1)
		p.logger.Warn("Agent queue saturated, dropping job",
			slog.String("meeting_id", req.MeetingID),
			slog.Uint64("dropped_total", p.droppedJobs.Load()),
		)
		return false
	}
}

func (p *Processor) agentWorker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			p.handleAgentJob(job)
		case <-p.done:
			// Drain remaining jobs before exiting.
			for {
				select {
				case job := <-p.jobs:
					p.handleAgentJob(job)
				default:
					return
				}
			}
		}
	}
}

// handleAgentJob runs one boundary call sequence: transcription, optional
// response generation and synthesis, then a room broadcast of the result.
func (p *Processor) handleAgentJob(job agentJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.AgentTimeout)
	defer cancel()

	startTime := time.Now()
	if p.metrics != nil {
		p.metrics.RecordAgentRequest()
	}

	transcript, err := p.provider.SpeechToText(ctx, job.wav)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordAgentFailure(time.Since(startTime).Seconds())
		}
		p.logger.Warn("Speech-to-text failed",
			slog.String("meeting_id", job.meetingID),
			slog.String("error", err.Error()),
		)
		return
	}

	response := agentResponse{
		Type:          "agent-response",
		MeetingID:     job.meetingID,
		ParticipantID: job.participantID,
		Transcript:    transcript,
	}

	if p.config.RespondEnabled {
		text, err := p.provider.GenerateResponse(ctx, transcript, nil)
		if err != nil {
			p.logger.Warn("Response generation failed",
				slog.String("meeting_id", job.meetingID),
				slog.String("error", err.Error()),
			)
		} else {
			response.ResponseText = text

			if speech, err := p.provider.TextToSpeech(ctx, text); err == nil {
				response.AudioBase64 = base64.StdEncoding.EncodeToString(speech)
			} else {
				p.logger.Warn("Speech synthesis failed",
					slog.String("meeting_id", job.meetingID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if p.metrics != nil {
		p.metrics.RecordAgentSuccess(time.Since(startTime).Seconds())
	}

	if job.roomName != "" {
		payload, err := json.Marshal(response)
		if err != nil {
			p.logger.Error("Failed to marshal agent response",
				slog.String("meeting_id", job.meetingID),
				slog.String("error", err.Error()),
			)
			return
		}

		delivery := p.router.Broadcast(job.roomName, payload)
		if p.metrics != nil {
			p.metrics.RecordDelivery(delivery.Delivered, delivery.Missed)
		}
	}
}
