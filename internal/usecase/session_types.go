package usecase

import (
	"sync"
	"time"
)

// blockBuffer accumulates audio blocks for one session in arrival order.
// Appends copy the incoming slice so callers may reuse their buffers.
type blockBuffer struct {
	blocks  [][]float32
	samples int
}

func (b *blockBuffer) append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	cp := make([]float32, len(samples))
	copy(cp, samples)
	b.blocks = append(b.blocks, cp)
	b.samples += len(cp)
}

// take returns the accumulated blocks and leaves the buffer empty.
func (b *blockBuffer) take() [][]float32 {
	blocks := b.blocks
	b.blocks = nil
	b.samples = 0
	return blocks
}

func (b *blockBuffer) reset() {
	b.blocks = nil
	b.samples = 0
}

func (b *blockBuffer) sampleCount() int { return b.samples }

// sessionTimer is a cancellable one-shot. Arming replaces any pending timer;
// expiry callbacks re-check session identity themselves, so a stale timer
// that slips past a clear is harmless.
type sessionTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func (t *sessionTimer) arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fn)
}

func (t *sessionTimer) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
