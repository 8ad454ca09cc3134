package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// transcriptServer fakes the provider endpoint: it counts binary audio bytes
// and answers the CloseStream message with one final result.
func transcriptServer(t *testing.T, transcript string, audioBytes *atomic.Int64) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch mt {
			case websocket.BinaryMessage:
				audioBytes.Add(int64(len(payload)))
			case websocket.TextMessage:
				if !strings.Contains(string(payload), "CloseStream") {
					continue
				}
				resp := `{"type":"Results","is_final":true,"speech_final":true,` +
					`"channel":{"alternatives":[{"transcript":"` + transcript + `"}]}}`
				if err := conn.WriteMessage(websocket.TextMessage, []byte(resp)); err != nil {
					return
				}
				deadline := time.Now().Add(time.Second)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				return
			}
		}
	}))
}

func TestPipelineRoundTrip(t *testing.T) {
	t.Parallel()

	var audioBytes atomic.Int64
	srv := transcriptServer(t, "hello world", &audioBytes)
	defer srv.Close()

	p := NewPipeline(Config{APIKey: "test-key", APIBaseURL: srv.URL}, nil)
	ctx := context.Background()

	if err := p.Prepare(ctx, "session-1"); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if err := p.ProcessChunk(ctx, "session-1", []float32{0.1, -0.1, 0.2}, time.Now()); err != nil {
		t.Fatalf("chunk failed: %v", err)
	}

	text, err := p.Finalize(ctx, "session-1", "", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if got := audioBytes.Load(); got != 6 {
		t.Fatalf("expected 6 audio bytes on the wire, got %d", got)
	}

	last, ok := p.LastResult()
	if !ok || last != "hello world" {
		t.Fatalf("unexpected last result: %q %v", last, ok)
	}
}

func TestPipelineLazyOpenOnChunk(t *testing.T) {
	t.Parallel()

	var audioBytes atomic.Int64
	srv := transcriptServer(t, "lazy", &audioBytes)
	defer srv.Close()

	p := NewPipeline(Config{APIKey: "test-key", APIBaseURL: srv.URL}, nil)
	ctx := context.Background()

	// No Prepare: the first chunk opens the stream.
	if err := p.ProcessChunk(ctx, "session-2", []float32{0.3}, time.Now()); err != nil {
		t.Fatalf("chunk failed: %v", err)
	}

	text, err := p.Finalize(ctx, "session-2", "", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if text != "lazy" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if got := audioBytes.Load(); got != 2 {
		t.Fatalf("expected 2 audio bytes on the wire, got %d", got)
	}
}

func TestPipelineAbandonDropsStream(t *testing.T) {
	t.Parallel()

	var audioBytes atomic.Int64
	srv := transcriptServer(t, "ignored", &audioBytes)
	defer srv.Close()

	p := NewPipeline(Config{APIKey: "test-key", APIBaseURL: srv.URL}, nil)
	ctx := context.Background()

	if err := p.Prepare(ctx, "session-3"); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if err := p.Abandon(ctx, "session-3"); err != nil {
		t.Fatalf("abandon failed: %v", err)
	}

	if _, err := p.Finalize(ctx, "session-3", "", time.Now(), time.Now()); err == nil {
		t.Fatalf("expected finalize to fail after abandon")
	}
	if _, ok := p.LastResult(); ok {
		t.Fatalf("abandoned session must not publish a result")
	}

	// Abandon is idempotent.
	if err := p.Abandon(ctx, "session-3"); err != nil {
		t.Fatalf("second abandon failed: %v", err)
	}
}

func TestPipelineFinalizeUnknownSession(t *testing.T) {
	t.Parallel()

	p := NewPipeline(Config{APIKey: "test-key"}, nil)
	if _, err := p.Finalize(context.Background(), "missing", "", time.Now(), time.Now()); err == nil {
		t.Fatalf("expected error for unknown session")
	}
}

func TestPipelineSurfacesProviderError(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Error","message":"bad audio"}`))
	}))
	defer srv.Close()

	p := NewPipeline(Config{APIKey: "test-key", APIBaseURL: srv.URL}, nil)
	ctx := context.Background()

	if err := p.Prepare(ctx, "session-4"); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if err := p.ProcessChunk(ctx, "session-4", []float32{0.1}, time.Now()); err != nil {
		t.Fatalf("chunk failed: %v", err)
	}

	_, err := p.Finalize(ctx, "session-4", "", time.Now(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "bad audio") {
		t.Fatalf("expected provider error, got %v", err)
	}
}
