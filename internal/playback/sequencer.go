package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/personaface/internal/anim"
	"github.com/normanking/personaface/internal/bus"
	"github.com/normanking/personaface/internal/dsp"
	"github.com/normanking/personaface/internal/tts"
	"github.com/normanking/personaface/internal/voice"
)

const (
	// minChunkBytes batches arriving byte ranges before decode, trading a
	// little latency for decode efficiency.
	minChunkBytes = 8 * 1024

	// monitorInterval is the amplitude sampling cadence while playing.
	monitorInterval = 16 * time.Millisecond
)

var ErrNothingToSay = errors.New("utterance empty after cleaning")

// Synthesizer is the synthesis-service boundary the sequencer speaks through.
type Synthesizer interface {
	Stream(ctx context.Context, req tts.Request) (io.ReadCloser, error)
}

// Sequencer buffers decoded audio, plays it gaplessly, and drives the
// animation core's speaking/idle transitions and amplitude input.
type Sequencer struct {
	core     *anim.Core
	analyzer *dsp.Analyzer
	sink     Sink
	synth    Synthesizer
	events   *bus.EventBus
	logger   zerolog.Logger

	voiceCfg voice.VoiceConfig
	pacing   voice.Pacing

	decode func([]byte) ([]float32, error)

	mu            sync.Mutex
	queue         [][]float32
	playing       bool
	streamCancel  context.CancelFunc
	monitorCancel context.CancelFunc
	utteranceID   string
}

// Config wires the sequencer's collaborators.
type Config struct {
	Core     *anim.Core
	Analyzer *dsp.Analyzer
	Sink     Sink
	Synth    Synthesizer
	Events   *bus.EventBus
	Voice    voice.VoiceConfig
	Pacing   voice.Pacing
	Logger   zerolog.Logger
}

// NewSequencer builds a sequencer. Core, Analyzer, and Sink are required;
// Synth may be nil when only Enqueue-driven playback is used.
func NewSequencer(cfg Config) *Sequencer {
	s := &Sequencer{
		core:     cfg.Core,
		analyzer: cfg.Analyzer,
		sink:     cfg.Sink,
		synth:    cfg.Synth,
		events:   cfg.Events,
		voiceCfg: cfg.Voice,
		pacing:   cfg.Pacing,
		logger:   cfg.Logger.With().Str("component", "playback").Logger(),
		decode:   decodePCMChunk,
	}
	if s.pacing == "" {
		s.pacing = voice.PacingNormal
	}
	return s
}

func decodePCMChunk(data []byte) ([]float32, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("chunk too short: %d bytes", len(data))
	}
	return dsp.DecodePCM16(data), nil
}

// Enqueue decodes one encoded chunk and appends it to the playback queue.
// A chunk that fails to decode is logged and dropped; the queue survives.
// The first chunk of an idle session flips the avatar into Speaking.
func (s *Sequencer) Enqueue(encoded []byte) {
	samples, err := s.decode(encoded)
	if err != nil {
		s.logger.Warn().Err(err).Int("bytes", len(encoded)).Msg("dropping undecodable chunk")
		return
	}

	s.mu.Lock()
	s.queue = append(s.queue, samples)
	wasPlaying := s.playing
	s.mu.Unlock()

	if !wasPlaying {
		s.startPlayback()
	}
}

// startPlayback begins draining the queue and starts the amplitude monitor.
func (s *Sequencer) startPlayback() {
	if err := s.sink.Start(); err != nil {
		s.logger.Error().Err(err).Msg("sink start failed")
		s.resetToIdle()
		return
	}

	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = true
	ctx, cancel := context.WithCancel(context.Background())
	s.monitorCancel = cancel
	s.mu.Unlock()

	s.core.SetState(anim.StateSpeaking)
	s.publish(bus.EventTypePlaybackStarted, map[string]any{"utterance": s.currentUtterance()})

	s.playNext()
	go s.monitor(ctx)
}

// playNext moves the queue head into the sink. Called whenever the sink
// runs dry while buffers remain, which is what makes playback gapless.
func (s *Sequencer) playNext() {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	head := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	s.sink.Play(head)
}

// monitor samples the sink tap every interval, feeds the analyzer's reading
// into the core, and advances or finishes the queue.
func (s *Sequencer) monitor(ctx context.Context) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	window := make([]float32, s.analyzer.FFTSize())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.sink.Tap(window)
			frame := s.analyzer.Analyze(window[:n])
			s.core.SetAudioAmplitude(float32(frame.Amplitude))
			shape, weight := dsp.ClassifyViseme(frame.Bands)
			s.core.SetViseme(shape, weight)

			if !s.sink.Pending() {
				s.mu.Lock()
				empty := len(s.queue) == 0
				streaming := s.streamCancel != nil
				s.mu.Unlock()

				if !empty {
					s.playNext()
				} else if !streaming {
					s.finish()
					return
				}
			}
		}
	}
}

// finish runs once the last buffer has played out: the avatar returns to
// Idle exactly once and affect decays to low-intensity neutral.
func (s *Sequencer) finish() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	if s.monitorCancel != nil {
		s.monitorCancel()
		s.monitorCancel = nil
	}
	s.mu.Unlock()

	s.resetToIdle()
	s.publish(bus.EventTypePlaybackFinished, map[string]any{"utterance": s.currentUtterance()})
	s.logger.Debug().Msg("playback queue drained")
}

func (s *Sequencer) resetToIdle() {
	s.core.SetAudioAmplitude(0)
	s.core.SetViseme(anim.VisemeSil, 0)
	s.core.SetState(anim.StateIdle)
	s.core.SetEmotion(anim.EmotionNeutral, 0.2, 0)
	s.analyzer.Reset()
}

// Speak plans the utterance, installs its emotion curve, opens the synthesis
// stream, and feeds arriving byte ranges into the queue in 8KB batches.
// The returned error covers planning and connection; stream-read failures
// after that reset the avatar and are logged.
func (s *Sequencer) Speak(ctx context.Context, text, voiceID string, emotion anim.Emotion) error {
	if s.synth == nil {
		return ErrUnavailableSynth
	}

	cfg := s.voiceCfg
	if voiceID != "" {
		cfg.VoiceID = voiceID
	}
	plan := voice.Direct(cfg, text, emotion, 0, s.pacing)
	if plan.CleanedText == "" {
		return ErrNothingToSay
	}

	if err := s.sink.Start(); err != nil {
		s.resetToIdle()
		return err
	}

	stream, err := s.synth.Stream(ctx, tts.Request{
		Text:    plan.CleanedText,
		VoiceID: cfg.VoiceID,
		Settings: tts.VoiceSettings{
			Stability:       plan.Params.Stability,
			SimilarityBoost: plan.Params.Similarity,
			Style:           plan.Params.Style,
			UseSpeakerBoost: plan.Params.SpeakerBoost,
		},
	})
	if err != nil {
		s.resetToIdle()
		return fmt.Errorf("open synthesis stream: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.streamCancel = cancel
	s.utteranceID = plan.UtteranceID
	s.mu.Unlock()

	s.core.SetEmotionCurve(plan.Curve, plan.EstimatedDuration)
	s.publish(bus.EventTypeSpeakStarted, map[string]any{
		"utterance":  plan.UtteranceID,
		"emotion":    string(plan.Emotion),
		"durationMs": plan.EstimatedDuration.Milliseconds(),
	})
	s.logger.Info().
		Str("utterance", plan.UtteranceID).
		Str("emotion", string(plan.Emotion)).
		Int("textLen", len(plan.CleanedText)).
		Msg("speaking")

	go s.readStream(streamCtx, stream)
	return nil
}

// readStream accumulates arriving bytes and enqueues once a minimum chunk
// has built up. A network failure mid-stream aborts the read and resets the
// avatar so it never shows a stuck speaking face with no sound.
func (s *Sequencer) readStream(ctx context.Context, stream io.ReadCloser) {
	defer stream.Close()
	defer func() {
		s.mu.Lock()
		if s.streamCancel != nil {
			s.streamCancel()
			s.streamCancel = nil
		}
		s.mu.Unlock()
	}()

	buf := make([]byte, 4096)
	pending := make([]byte, 0, minChunkBytes*2)

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := stream.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			if len(pending) >= minChunkBytes {
				s.Enqueue(pending)
				pending = pending[:0]
			}
		}
		if err == io.EOF {
			if len(pending) > 0 {
				s.Enqueue(pending)
			}
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("synthesis stream read failed")
				s.Stop()
			}
			return
		}
	}
}

// Stop halts everything: stream, monitor, queue, device buffer. Idempotent
// from any internal state; afterwards the avatar is Idle with zero amplitude
// and an empty queue.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if s.streamCancel != nil {
		s.streamCancel()
		s.streamCancel = nil
	}
	if s.monitorCancel != nil {
		s.monitorCancel()
		s.monitorCancel = nil
	}
	s.queue = nil
	wasPlaying := s.playing
	s.playing = false
	s.mu.Unlock()

	s.sink.Clear()
	s.resetToIdle()

	if wasPlaying {
		s.publish(bus.EventTypePlaybackFinished, map[string]any{"utterance": s.currentUtterance(), "stopped": true})
	}
}

// IsPlaying reports whether buffers are currently draining.
func (s *Sequencer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// QueueLen returns the number of buffered, not-yet-played chunks.
func (s *Sequencer) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Sequencer) currentUtterance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.utteranceID
}

func (s *Sequencer) publish(t bus.EventType, data map[string]any) {
	if s.events != nil {
		s.events.Publish(bus.Event{Type: t, Data: data})
	}
}

// ErrUnavailableSynth is returned by Speak when no synthesizer is wired.
var ErrUnavailableSynth = errors.New("no synthesizer configured")
