package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/normanking/personaface/internal/anim"
	"github.com/normanking/personaface/internal/bus"
)

func dialTestServer(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestBroadcast_DeliversFrame(t *testing.T) {
	s := NewServer("unused", bus.NewEventBus(), zerolog.Nop())
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	var weights anim.BlendshapeVector
	weights.Set(anim.JawOpen, 0.42)
	weights.Set(anim.MouthSmileLeft, 0.3)

	s.Broadcast(anim.FrameOutput{
		Weights:          weights,
		IsBlinking:       true,
		State:            anim.StateSpeaking,
		Emotion:          anim.EmotionHappy,
		EmotionIntensity: 0.8,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame wireFrame
	require.NoError(t, json.Unmarshal(payload, &frame))
	require.Len(t, frame.Weights, int(anim.BlendshapeCount))
	require.InDelta(t, 0.42, float64(frame.Weights[anim.JawOpen]), 1e-6)
	require.True(t, frame.IsBlinking)
	require.Equal(t, "speaking", frame.State)
	require.Equal(t, "happy", frame.Emotion)
	require.InDelta(t, 0.8, float64(frame.EmotionIntensity), 1e-6)
}

func TestBroadcast_NoClientsIsCheap(t *testing.T) {
	s := NewServer("unused", nil, zerolog.Nop())
	// Must not block or panic with an empty client set.
	s.Broadcast(anim.FrameOutput{})
}

func TestClientDisconnect_Removed(t *testing.T) {
	events := bus.NewEventBus()
	disconnected := make(chan struct{}, 1)
	events.Subscribe(bus.EventTypeClientDisconnected, func(bus.Event) {
		select {
		case disconnected <- struct{}{}:
		default:
		}
	})

	s := NewServer("unused", events, zerolog.Nop())
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return s.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond)

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Error("disconnect event never published")
	}
}

func TestSlowClient_KeepsLatestFrame(t *testing.T) {
	s := NewServer("unused", nil, zerolog.Nop())
	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	require.Eventually(t, func() bool { return s.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	// Flood far past the send buffer without reading; old frames drop but
	// the client stays connected and still receives the newest.
	for i := 0; i < 100; i++ {
		var w anim.BlendshapeVector
		w.Set(anim.JawOpen, float32(i)/100)
		s.Broadcast(anim.FrameOutput{Weights: w})
	}

	require.Equal(t, 1, s.ClientCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)
}
