package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/personaface/internal/anim"
	"github.com/normanking/personaface/internal/dsp"
	"github.com/normanking/personaface/internal/tts"
	"github.com/normanking/personaface/internal/voice"
)

// fakeSink is an in-memory Sink the tests drain by hand.
type fakeSink struct {
	mu       sync.Mutex
	started  bool
	startErr error
	played   [][]float32
	pending  bool
}

func (f *fakeSink) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeSink) Play(samples []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, samples)
	f.pending = true
}

func (f *fakeSink) Tap(out []float32) int {
	for i := range out {
		out[i] = 0
	}
	return len(out)
}

func (f *fakeSink) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func (f *fakeSink) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
}

func (f *fakeSink) Close() error { return nil }

// drain marks the current buffer as fully played.
func (f *fakeSink) drain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
}

func (f *fakeSink) playedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

type fakeSynth struct {
	data []byte
	err  error
}

func (f *fakeSynth) Stream(ctx context.Context, req tts.Request) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func pcmChunk(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(i%2000)))
	}
	return buf
}

func newTestSequencer(sink Sink, synth Synthesizer) (*Sequencer, *anim.Core) {
	core := anim.NewCore()
	seq := NewSequencer(Config{
		Core:     core,
		Analyzer: dsp.NewAnalyzer(16000),
		Sink:     sink,
		Synth:    synth,
		Voice:    voice.VoiceConfig{VoiceID: "nova", Stability: 0.5, Similarity: 0.75},
		Logger:   zerolog.Nop(),
	})
	return seq, core
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestEnqueue_FirstChunkStartsSpeaking(t *testing.T) {
	sink := &fakeSink{}
	seq, core := newTestSequencer(sink, nil)
	defer seq.Stop()

	if core.State() != anim.StateIdle {
		t.Fatalf("initial state = %s", core.State())
	}

	seq.Enqueue(pcmChunk(1024))

	if core.State() != anim.StateSpeaking {
		t.Errorf("state after enqueue = %s, want speaking", core.State())
	}
	if !seq.IsPlaying() {
		t.Error("sequencer not playing after enqueue")
	}
	if sink.playedCount() != 1 {
		t.Errorf("played %d buffers, want 1", sink.playedCount())
	}
}

func TestPlayback_ReturnsToIdleOnceDrained(t *testing.T) {
	sink := &fakeSink{}
	seq, core := newTestSequencer(sink, nil)
	defer seq.Stop()

	seq.Enqueue(pcmChunk(512))
	seq.Enqueue(pcmChunk(512))

	// Drain buffers as the monitor feeds them.
	done := waitFor(t, 2*time.Second, func() bool {
		if sink.Pending() {
			sink.drain()
		}
		return core.State() == anim.StateIdle && !seq.IsPlaying()
	})
	if !done {
		t.Fatal("never returned to idle after queue drained")
	}
	if sink.playedCount() != 2 {
		t.Errorf("played %d buffers, want 2", sink.playedCount())
	}
	if seq.QueueLen() != 0 {
		t.Errorf("queue not empty: %d", seq.QueueLen())
	}
}

func TestEnqueue_UndecodableChunkDropped(t *testing.T) {
	sink := &fakeSink{}
	seq, core := newTestSequencer(sink, nil)
	defer seq.Stop()

	seq.decode = func([]byte) ([]float32, error) {
		return nil, errors.New("bad frame header")
	}

	seq.Enqueue([]byte{0x01, 0x02, 0x03, 0x04})

	if seq.QueueLen() != 0 {
		t.Errorf("undecodable chunk reached the queue: len %d", seq.QueueLen())
	}
	if core.State() != anim.StateIdle {
		t.Errorf("state changed on dropped chunk: %s", core.State())
	}
	if seq.IsPlaying() {
		t.Error("playback started on dropped chunk")
	}
}

func TestEnqueue_SinkStartFailureResetsToIdle(t *testing.T) {
	sink := &fakeSink{startErr: ErrAudioPermission}
	seq, core := newTestSequencer(sink, nil)

	seq.Enqueue(pcmChunk(256))

	if seq.IsPlaying() {
		t.Error("playing despite sink failure")
	}
	if core.State() != anim.StateIdle {
		t.Errorf("state = %s, want idle", core.State())
	}
}

func TestStop_IdempotentFromAnyState(t *testing.T) {
	sink := &fakeSink{}
	seq, core := newTestSequencer(sink, nil)

	// Stop before anything played.
	seq.Stop()
	seq.Stop()

	seq.Enqueue(pcmChunk(512))
	seq.Stop()
	seq.Stop()

	if seq.IsPlaying() {
		t.Error("still playing after stop")
	}
	if seq.QueueLen() != 0 {
		t.Errorf("queue survives stop: %d", seq.QueueLen())
	}
	if core.State() != anim.StateIdle {
		t.Errorf("state = %s, want idle", core.State())
	}
	if sink.Pending() {
		t.Error("sink buffer not cleared")
	}
}

func TestSpeak_StreamsAndChunksAudio(t *testing.T) {
	sink := &fakeSink{}
	// 20000 bytes: two full 8KB batches plus a remainder on EOF.
	synth := &fakeSynth{data: pcmChunk(10000)}
	seq, core := newTestSequencer(sink, synth)
	defer seq.Stop()

	err := seq.Speak(context.Background(), "hello there friend", "", anim.EmotionHappy)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return seq.IsPlaying() }) {
		t.Fatal("playback never started")
	}
	if core.State() != anim.StateSpeaking {
		t.Errorf("state = %s, want speaking", core.State())
	}

	drained := waitFor(t, 3*time.Second, func() bool {
		if sink.Pending() {
			sink.drain()
		}
		return core.State() == anim.StateIdle && !seq.IsPlaying()
	})
	if !drained {
		t.Fatal("never finished playback")
	}
	if sink.playedCount() != 3 {
		t.Errorf("played %d buffers, want 3", sink.playedCount())
	}
}

func TestSpeak_OpenFailureSurfaced(t *testing.T) {
	sink := &fakeSink{}
	synth := &fakeSynth{err: errors.New("dial tcp: connection refused")}
	seq, core := newTestSequencer(sink, synth)

	err := seq.Speak(context.Background(), "hello", "", "")
	if err == nil {
		t.Fatal("expected error from failed stream open")
	}
	if core.State() != anim.StateIdle {
		t.Errorf("state = %s, want idle", core.State())
	}
}

func TestSpeak_EmptyAfterCleaning(t *testing.T) {
	seq, _ := newTestSequencer(&fakeSink{}, &fakeSynth{})
	err := seq.Speak(context.Background(), "*just a stage direction*", "", "")
	if !errors.Is(err, ErrNothingToSay) {
		t.Errorf("err = %v, want ErrNothingToSay", err)
	}
}

func TestSpeak_NoSynthConfigured(t *testing.T) {
	seq, _ := newTestSequencer(&fakeSink{}, nil)
	err := seq.Speak(context.Background(), "hello", "", "")
	if !errors.Is(err, ErrUnavailableSynth) {
		t.Errorf("err = %v, want ErrUnavailableSynth", err)
	}
}

func TestSampleRing_PushPop(t *testing.T) {
	r := &sampleRing{}
	if !r.empty() {
		t.Error("new ring not empty")
	}

	n := r.push([]float32{0.1, 0.2, 0.3})
	if n != 3 {
		t.Fatalf("pushed %d, want 3", n)
	}
	for i, want := range []float32{0.1, 0.2, 0.3} {
		got, ok := r.pop()
		if !ok || got != want {
			t.Errorf("pop %d = %f,%v, want %f", i, got, ok, want)
		}
	}
	if _, ok := r.pop(); ok {
		t.Error("pop on empty ring succeeded")
	}

	r.push([]float32{1, 2, 3})
	r.clear()
	if !r.empty() {
		t.Error("ring not empty after clear")
	}
}

func TestSampleRing_OverflowDropsExcess(t *testing.T) {
	r := &sampleRing{}
	big := make([]float32, ringSize+100)
	n := r.push(big)
	if n != ringSize {
		t.Errorf("pushed %d, want %d", n, ringSize)
	}
	if r.push([]float32{1}) != 0 {
		t.Error("full ring accepted more samples")
	}
}
