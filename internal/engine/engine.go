// Package engine wires the animation core, playback, synthesis, and the
// frame stream into one runnable unit driven by a fixed-rate tick loop.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/personaface/internal/anim"
	"github.com/normanking/personaface/internal/bus"
	"github.com/normanking/personaface/internal/config"
	"github.com/normanking/personaface/internal/dsp"
	"github.com/normanking/personaface/internal/playback"
	"github.com/normanking/personaface/internal/stream"
	"github.com/normanking/personaface/internal/tts"
	"github.com/normanking/personaface/internal/voice"
)

// Engine owns the tick loop and the component graph behind one persona face.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger

	core      *anim.Core
	analyzer  *dsp.Analyzer
	sink      *playback.DeviceSink
	synth     *tts.Client
	sequencer *playback.Sequencer
	stream    *stream.Server
	events    *bus.EventBus

	mu       sync.Mutex
	persona  config.Persona
	tickRate int

	lastState   anim.State
	lastEmotion anim.Emotion
}

// New builds the full component graph from configuration.
func New(cfg *config.Config, logger zerolog.Logger) (*Engine, error) {
	events := bus.NewEventBus()

	persona := config.GetPersona(cfg.User.PersonaID)
	if persona == nil {
		return nil, fmt.Errorf("unknown persona %q", cfg.User.PersonaID)
	}

	archetype := anim.ArchetypeByName(cfg.Animation.Archetype)
	core := anim.NewCore(
		anim.WithLogger(logger),
		anim.WithArchetype(archetype),
		anim.WithRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
	)
	core.SetEyeContact(true, float32(cfg.Animation.EyeContactStrength))

	analyzer := dsp.NewAnalyzer(cfg.Audio.SampleRate)
	sink := playback.NewDeviceSink(cfg.Audio.SampleRate)

	synth := tts.NewClient(logger, tts.Config{
		APIKey:  cfg.TTS.APIKey,
		ModelID: cfg.TTS.ModelID,
		Timeout: cfg.TTS.Timeout,
	})

	sequencer := playback.NewSequencer(playback.Config{
		Core:     core,
		Analyzer: analyzer,
		Sink:     sink,
		Synth:    synth,
		Events:   events,
		Voice: voice.VoiceConfig{
			VoiceID:    persona.VoiceID,
			ModelID:    cfg.TTS.ModelID,
			Stability:  cfg.TTS.Stability,
			Similarity: cfg.TTS.Similarity,
		},
		Pacing: voice.Pacing(cfg.TTS.Pacing),
		Logger: logger,
	})

	var frameServer *stream.Server
	if cfg.Stream.Enabled {
		frameServer = stream.NewServer(cfg.Stream.ListenAddr, events, logger)
	}

	return &Engine{
		cfg:       cfg,
		logger:    logger.With().Str("component", "engine").Logger(),
		core:      core,
		analyzer:  analyzer,
		sink:      sink,
		synth:     synth,
		sequencer: sequencer,
		stream:    frameServer,
		events:    events,
		persona:   *persona,
		tickRate:  cfg.Animation.TickRate,
	}, nil
}

// Core exposes the animation core for direct control.
func (e *Engine) Core() *anim.Core { return e.core }

// Events exposes the engine's event bus.
func (e *Engine) Events() *bus.EventBus { return e.events }

// Persona returns the active persona.
func (e *Engine) Persona() config.Persona {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persona
}

// SetPersona switches the active persona: voice follows on the next Speak,
// movement character changes immediately.
func (e *Engine) SetPersona(id string) error {
	p := config.GetPersona(id)
	if p == nil {
		return fmt.Errorf("unknown persona %q", id)
	}

	e.mu.Lock()
	e.persona = *p
	e.mu.Unlock()

	e.core.SetArchetype(anim.ArchetypeByName(p.Archetype))
	e.events.Publish(bus.Event{Type: bus.EventTypePersonaChanged, Data: map[string]any{"persona": p.ID}})
	e.logger.Info().Str("persona", p.ID).Msg("persona changed")
	return nil
}

// Speak plans and performs one utterance with the active persona's voice.
func (e *Engine) Speak(ctx context.Context, text string, emotion anim.Emotion) error {
	e.mu.Lock()
	voiceID := e.persona.VoiceID
	e.mu.Unlock()

	err := e.sequencer.Speak(ctx, text, voiceID, emotion)
	if err != nil {
		e.events.Publish(bus.Event{Type: bus.EventTypeSpeakFailed, Data: map[string]any{"error": err.Error()}})
	}
	return err
}

// Stop halts any in-flight speech.
func (e *Engine) Stop() { e.sequencer.Stop() }

// IsSpeaking reports whether playback is active.
func (e *Engine) IsSpeaking() bool { return e.sequencer.IsPlaying() }

// Reload applies hot-reloadable animation settings from a fresh config.
func (e *Engine) Reload(cfg *config.Config) {
	e.mu.Lock()
	if cfg.Animation.TickRate > 0 {
		e.tickRate = cfg.Animation.TickRate
	}
	e.mu.Unlock()

	e.core.SetEyeContact(true, float32(cfg.Animation.EyeContactStrength))
	e.core.SetArchetype(anim.ArchetypeByName(cfg.Animation.Archetype))
	e.events.Publish(bus.Event{Type: bus.EventTypeConfigReloaded, Data: nil})
	e.logger.Info().Msg("animation settings reloaded")
}

// Run drives the tick loop until the context ends. Each tick advances the
// core by the measured wall delta and broadcasts the resulting frame.
func (e *Engine) Run(ctx context.Context) error {
	if e.stream != nil {
		if err := e.stream.Start(); err != nil {
			return fmt.Errorf("start frame stream: %w", err)
		}
	}

	e.mu.Lock()
	rate := e.tickRate
	e.mu.Unlock()
	if rate <= 0 {
		rate = 60
	}

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	defer e.shutdown()

	e.logger.Info().Int("tickRate", rate).Msg("engine running")

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			deltaMs := float64(now.Sub(last).Microseconds()) / 1000.0
			last = now
			// Cap long stalls so a suspended process doesn't fast-forward
			// every animation timer at once.
			if deltaMs > 100 {
				deltaMs = 100
			}

			frame := e.core.Tick(deltaMs)
			if e.stream != nil {
				e.stream.Broadcast(frame)
			}
			e.notifyChanges(frame)
		}
	}
}

// notifyChanges publishes state and emotion transitions without flooding the
// bus on every tick.
func (e *Engine) notifyChanges(frame anim.FrameOutput) {
	e.mu.Lock()
	stateChanged := frame.State != e.lastState
	emotionChanged := frame.Emotion != e.lastEmotion
	e.lastState = frame.State
	e.lastEmotion = frame.Emotion
	e.mu.Unlock()

	if stateChanged {
		e.events.Publish(bus.Event{Type: bus.EventTypeStateChanged, Data: map[string]any{"state": string(frame.State)}})
	}
	if emotionChanged {
		e.events.Publish(bus.Event{Type: bus.EventTypeEmotionChanged, Data: map[string]any{
			"emotion":   string(frame.Emotion),
			"intensity": frame.EmotionIntensity,
		}})
	}
}

func (e *Engine) shutdown() {
	e.sequencer.Stop()
	e.sink.Close()
	if e.stream != nil {
		if err := e.stream.Stop(); err != nil {
			e.logger.Warn().Err(err).Msg("frame stream shutdown")
		}
	}
	e.logger.Info().Msg("engine stopped")
}
