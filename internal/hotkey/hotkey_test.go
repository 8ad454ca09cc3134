package hotkey

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.design/x/hotkey"
)

type countingHandler struct {
	mu      sync.Mutex
	downs   int
	ups     int
	toggles int
}

func (h *countingHandler) HandlePressDown(context.Context) {
	h.mu.Lock()
	h.downs++
	h.mu.Unlock()
}

func (h *countingHandler) HandlePressUp(context.Context) {
	h.mu.Lock()
	h.ups++
	h.mu.Unlock()
}

func (h *countingHandler) HandleToggle(context.Context) {
	h.mu.Lock()
	h.toggles++
	h.mu.Unlock()
}

func (h *countingHandler) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.downs, h.ups, h.toggles
}

func TestWatchDispatchesEvents(t *testing.T) {
	t.Parallel()

	pressDown := make(chan hotkey.Event)
	pressUp := make(chan hotkey.Event)
	toggle := make(chan hotkey.Event)
	done := make(chan struct{})
	handler := &countingHandler{}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watch(pressDown, pressUp, toggle, handler, done)
	}()

	pressDown <- hotkey.Event{}
	pressUp <- hotkey.Event{}
	pressDown <- hotkey.Event{}
	pressUp <- hotkey.Event{}
	toggle <- hotkey.Event{}

	close(done)
	wg.Wait()

	downs, ups, toggles := handler.counts()
	if downs != 2 || ups != 2 || toggles != 1 {
		t.Fatalf("unexpected dispatch counts: downs=%d ups=%d toggles=%d", downs, ups, toggles)
	}
}

func TestWatchStopsOnDone(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		watch(nil, nil, nil, &countingHandler{}, done)
		close(finished)
	}()

	close(done)
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("watch loop did not stop")
	}
}

func TestParseChord(t *testing.T) {
	t.Parallel()

	mods, key, err := parseChord("ctrl+shift+space")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(mods) != 2 {
		t.Fatalf("expected two modifiers, got %v", mods)
	}
	if key != hotkey.KeySpace {
		t.Fatalf("expected space key, got %v", key)
	}

	mods, key, err = parseChord("F12")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(mods) != 0 {
		t.Fatalf("expected bare key, got modifiers %v", mods)
	}
	if key != hotkey.KeyF12 {
		t.Fatalf("expected f12, got %v", key)
	}

	if _, _, err := parseChord("ctrl+banana"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, _, err := parseChord("hyper+space"); err == nil {
		t.Fatalf("expected unknown modifier error")
	}
	if _, _, err := parseChord("  "); err == nil {
		t.Fatalf("expected empty chord error")
	}
	if _, _, err := parseChord("ctrl + t"); err != nil {
		t.Fatalf("expected spaced chord to parse, got %v", err)
	}
}
