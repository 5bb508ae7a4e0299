package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/speech-engine/internal/audio"
	"github.com/lexiqai/speech-engine/internal/backend"
	"github.com/lexiqai/speech-engine/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Backend:             "stub",
		SpeechMode:          "manual",
		SentenceTimeout:     5000,
		MaxSpeechBufferSize: 16000,
		InputBufferSize:     16000,
		SampleRate:          16000,
		VADEngine:           "energy",
		VADEnergyThreshold:  500,
		VADSilenceFrames:    10,
		VADFrameSize:        320,
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	handler := NewStreamHandler(testConfig(), backend.NewStubModel(zerolog.Nop()), zerolog.Nop())
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/streams/audio" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// tone returns n loud samples
func tone(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 3000
		} else {
			samples[i] = -3000
		}
	}
	return samples
}

// readUntil collects events until one matches done
func readUntil(t *testing.T, conn *websocket.Conn, done func(EventMessage) bool) []EventMessage {
	t.Helper()
	var events []EventMessage
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline failed: %v", err)
	}
	for {
		var msg EventMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON failed after %v: %v", events, err)
		}
		events = append(events, msg)
		if done(msg) {
			return events
		}
	}
}

func TestStreamRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "?mode=manual")

	if err := conn.WriteJSON(ControlMessage{Event: "start"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, audio.EncodePCM16(tone(1600))); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if err := conn.WriteJSON(ControlMessage{Event: "stop"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	events := readUntil(t, conn, func(msg EventMessage) bool {
		return msg.Event == "flush"
	})

	var sawSpeech, sawText bool
	for _, msg := range events {
		switch msg.Event {
		case "status":
			if msg.Status == "speech_detected" {
				sawSpeech = true
			}
		case "text":
			if strings.HasPrefix(msg.Text, "[stub] utterance 1:") {
				sawText = true
			}
		case "error":
			t.Errorf("Unexpected error event: %s", msg.Error)
		}
	}

	if !sawSpeech {
		t.Errorf("Expected a speech_detected status, got %+v", events)
	}
	if !sawText {
		t.Errorf("Expected a stub transcript, got %+v", events)
	}
	if last := events[len(events)-1]; last.Kind != "eof" {
		t.Errorf("Expected an eof flush, got %+v", last)
	}
}

func TestStreamRejectsUnknownControl(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "")

	if err := conn.WriteJSON(ControlMessage{Event: "rewind"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	events := readUntil(t, conn, func(msg EventMessage) bool {
		return msg.Event == "error"
	})
	if !strings.Contains(events[len(events)-1].Error, "rewind") {
		t.Errorf("Expected error naming the event, got %+v", events)
	}
}

func TestStreamSpeechRequiresStarted(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv, "")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"speech"}`)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	events := readUntil(t, conn, func(msg EventMessage) bool {
		return msg.Event == "error"
	})
	if !strings.Contains(events[len(events)-1].Error, "started") {
		t.Errorf("Expected error about the started field, got %+v", events)
	}
}

func TestStreamBadParams(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		query string
	}{
		{"unknown mode", "?mode=continuous"},
		{"unknown encoding", "?encoding=opus"},
		{"bad sample rate", "?sample_rate=fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/streams/audio" + tt.query)
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestControlMessageDecoding(t *testing.T) {
	var msg ControlMessage
	if err := json.Unmarshal([]byte(`{"event":"speech","started":false}`), &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if msg.Event != "speech" || msg.Started == nil || *msg.Started {
		t.Errorf("Unexpected decoded message %+v", msg)
	}
}
