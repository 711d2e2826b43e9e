// Package playback owns the utterance queue: it fetches synthesized audio,
// plays it back gaplessly, and drives the animation core's speaking inputs.
package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// ErrAudioPermission marks a recoverable host-audio failure: the output
// device could not start, typically because the audio subsystem is suspended
// pending a user gesture. Callers retry Speak after the next gesture.
var ErrAudioPermission = errors.New("audio output unavailable")

// Sink is the audio output device boundary. Play queues samples without
// blocking; Tap exposes the most recently played window for analysis.
type Sink interface {
	Start() error
	Play(samples []float32)
	Tap(out []float32) int
	Pending() bool
	Clear()
	Close() error
}

const (
	// ringSize holds ~16s of queued audio at 16kHz.
	ringSize = 262144
	// tapSize keeps a little over one analysis window of played samples.
	tapSize = 512
)

// sampleRing is a lock-free single-producer single-consumer ring.
type sampleRing struct {
	samples [ringSize]float32
	head    atomic.Uint64
	tail    atomic.Uint64
}

func (r *sampleRing) push(samples []float32) int {
	head := r.head.Load()
	tail := r.tail.Load()

	available := ringSize - int(head-tail)
	toWrite := len(samples)
	if toWrite > available {
		toWrite = available
	}
	for i := 0; i < toWrite; i++ {
		r.samples[(head+uint64(i))%ringSize] = samples[i]
	}
	r.head.Add(uint64(toWrite))
	return toWrite
}

func (r *sampleRing) pop() (float32, bool) {
	head := r.head.Load()
	tail := r.tail.Load()
	if head == tail {
		return 0, false
	}
	s := r.samples[tail%ringSize]
	r.tail.Add(1)
	return s, true
}

func (r *sampleRing) empty() bool {
	return r.head.Load() == r.tail.Load()
}

func (r *sampleRing) clear() {
	r.tail.Store(r.head.Load())
}

// DeviceSink plays mono float32 samples through the default output device.
// The device callback pulls from the ring and mirrors what it played into a
// tap buffer the analyzer reads from.
type DeviceSink struct {
	sampleRate uint32

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	ring *sampleRing

	tap    [tapSize]float32
	tapPos atomic.Uint64

	started atomic.Bool
}

// NewDeviceSink creates an unstarted sink for the given sample rate.
func NewDeviceSink(sampleRate int) *DeviceSink {
	return &DeviceSink{
		sampleRate: uint32(sampleRate),
		ring:       &sampleRing{},
	}
}

// Start initializes and starts the output device. Failures surface as
// ErrAudioPermission so callers can retry after a user gesture.
func (s *DeviceSink) Start() error {
	if s.started.Load() {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init context: %v", ErrAudioPermission, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = s.sampleRate
	deviceConfig.PeriodSizeInMilliseconds = 20

	onSendFrames := func(pOutput, _ []byte, frameCount uint32) {
		pos := s.tapPos.Load()
		for i := 0; i < int(frameCount); i++ {
			var sample float32
			if v, ok := s.ring.pop(); ok {
				sample = v
			}
			binary.LittleEndian.PutUint32(pOutput[i*4:], math.Float32bits(sample))
			s.tap[(pos+uint64(i))%tapSize] = sample
		}
		s.tapPos.Add(uint64(frameCount))
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: init device: %v", ErrAudioPermission, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("%w: start device: %v", ErrAudioPermission, err)
	}

	s.ctx = ctx
	s.device = device
	s.started.Store(true)
	return nil
}

// Play queues samples for output. Overflow drops the excess; the queue is
// sized well beyond any single utterance buffer.
func (s *DeviceSink) Play(samples []float32) {
	s.ring.push(samples)
}

// Tap copies the most recently played samples into out, oldest first, and
// returns the count copied.
func (s *DeviceSink) Tap(out []float32) int {
	n := len(out)
	if n > tapSize {
		n = tapSize
	}
	pos := s.tapPos.Load()
	for i := 0; i < n; i++ {
		out[i] = s.tap[(pos+uint64(tapSize-n+i))%tapSize]
	}
	return n
}

// Pending reports whether queued samples remain unplayed.
func (s *DeviceSink) Pending() bool {
	return !s.ring.empty()
}

// Clear drops all queued samples.
func (s *DeviceSink) Clear() {
	s.ring.clear()
}

// Close stops and releases the device. Safe to call more than once.
func (s *DeviceSink) Close() error {
	if !s.started.Swap(false) {
		return nil
	}
	if s.device != nil {
		s.device.Stop()
		s.device.Uninit()
		s.device = nil
	}
	if s.ctx != nil {
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.ctx = nil
	}
	return nil
}
