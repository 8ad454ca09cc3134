// Package hotkey turns global key chords into session control calls.
package hotkey

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.design/x/hotkey"
)

// Handler receives key events. usecase.Controller satisfies it.
type Handler interface {
	HandlePressDown(ctx context.Context)
	HandlePressUp(ctx context.Context)
	HandleToggle(ctx context.Context)
}

// Options name the registered chords, e.g. "ctrl+shift+space". The last
// token is the key, everything before it a modifier.
type Options struct {
	PTTChord    string
	ToggleChord string
}

// Watcher owns the OS hotkey registrations and the dispatch loop. The PTT
// chord reports both press and release; the toggle chord reports presses
// only.
type Watcher struct {
	ptt     *hotkey.Hotkey
	toggle  *hotkey.Hotkey
	handler Handler
	logger  *zap.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewWatcher(opts Options, handler Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pttMods, pttKey, err := parseChord(opts.PTTChord)
	if err != nil {
		return nil, fmt.Errorf("ptt chord: %w", err)
	}
	toggleMods, toggleKey, err := parseChord(opts.ToggleChord)
	if err != nil {
		return nil, fmt.Errorf("toggle chord: %w", err)
	}

	ptt := hotkey.New(pttMods, pttKey)
	if err := ptt.Register(); err != nil {
		return nil, fmt.Errorf("register %q: %w", opts.PTTChord, err)
	}
	toggle := hotkey.New(toggleMods, toggleKey)
	if err := toggle.Register(); err != nil {
		_ = ptt.Unregister()
		return nil, fmt.Errorf("register %q: %w", opts.ToggleChord, err)
	}

	return &Watcher{
		ptt:     ptt,
		toggle:  toggle,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start launches the dispatch loop.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		watch(w.ptt.Keydown(), w.ptt.Keyup(), w.toggle.Keydown(), w.handler, w.done)
	}()
	w.logger.Info("global hotkeys active")
}

// Stop ends the dispatch loop and releases the OS registrations.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		_ = w.ptt.Unregister()
		_ = w.toggle.Unregister()
	})
}

func watch(pressDown, pressUp, toggle <-chan hotkey.Event, h Handler, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-pressDown:
			h.HandlePressDown(context.Background())
		case <-pressUp:
			h.HandlePressUp(context.Background())
		case <-toggle:
			h.HandleToggle(context.Background())
		}
	}
}

// parseChord resolves a chord string into hotkey modifiers and a key.
func parseChord(chord string) ([]hotkey.Modifier, hotkey.Key, error) {
	tokens := strings.Split(strings.ToLower(chord), "+")
	cleaned := tokens[:0]
	for _, tok := range tokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			cleaned = append(cleaned, tok)
		}
	}
	if len(cleaned) == 0 {
		return nil, 0, fmt.Errorf("empty chord")
	}

	keyName := cleaned[len(cleaned)-1]
	key, ok := keyTable[keyName]
	if !ok {
		return nil, 0, fmt.Errorf("unknown key %q", keyName)
	}

	var mods []hotkey.Modifier
	for _, name := range cleaned[:len(cleaned)-1] {
		mod, ok := modifierTable[name]
		if !ok {
			return nil, 0, fmt.Errorf("unknown modifier %q", name)
		}
		mods = append(mods, mod)
	}
	return mods, key, nil
}

var keyTable = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"tab":    hotkey.KeyTab,
	"enter":  hotkey.KeyReturn,
	"return": hotkey.KeyReturn,
	"esc":    hotkey.KeyEscape,
	"escape": hotkey.KeyEscape,
	"delete": hotkey.KeyDelete,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3,
	"f4": hotkey.KeyF4, "f5": hotkey.KeyF5, "f6": hotkey.KeyF6,
	"f7": hotkey.KeyF7, "f8": hotkey.KeyF8, "f9": hotkey.KeyF9,
	"f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}
