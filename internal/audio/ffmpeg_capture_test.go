package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"surasura/internal/ports"
)

// sample 1.0 as little-endian float32
const oneF32 = `\x00\x00\x80\x3f`

type blockCollector struct {
	mu     sync.Mutex
	blocks [][]float32
	finals int

	once sync.Once
	done chan struct{}
}

func newBlockCollector() *blockCollector {
	return &blockCollector{done: make(chan struct{})}
}

func (c *blockCollector) sink(samples []float32, final bool) {
	c.mu.Lock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	c.blocks = append(c.blocks, cp)
	if final {
		c.finals++
	}
	c.mu.Unlock()

	if final {
		c.once.Do(func() { close(c.done) })
	}
}

func (c *blockCollector) waitFinal(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("final block never arrived")
	}
}

func (c *blockCollector) snapshot() ([][]float32, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]float32, len(c.blocks))
	copy(out, c.blocks)
	return out, c.finals
}

func TestFFMPEGCaptureDeliversBlocksAndFinal(t *testing.T) {
	t.Parallel()

	// Four samples of 1.0, then hold the pipe open until stopped.
	script := writeScript(t, "capture.sh",
		"#!/usr/bin/env bash\nprintf '"+oneF32+oneF32+oneF32+oneF32+"'\nsleep 2\n")
	capture := NewFFMPEGCapture(script)
	collector := newBlockCollector()

	session, err := capture.Start(context.Background(), ports.AudioConfig{BlockFrames: 2}, collector.sink)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	collector.waitFinal(t)

	blocks, finals := collector.snapshot()
	if finals != 1 {
		t.Fatalf("expected exactly one final block, got %d", finals)
	}

	var samples []float32
	for _, b := range blocks {
		samples = append(samples, b...)
	}
	if len(samples) != 4 {
		t.Fatalf("expected 4 samples, got %d (%v)", len(samples), blocks)
	}
	for i, s := range samples {
		if s != 1.0 {
			t.Fatalf("sample %d: got %v want 1.0", i, s)
		}
	}
}

func TestFFMPEGCapturePartialTailRidesFinalBlock(t *testing.T) {
	t.Parallel()

	// Three samples: one full block of two, then a one-sample tail at EOF.
	script := writeScript(t, "tail.sh",
		"#!/usr/bin/env bash\nprintf '"+oneF32+oneF32+oneF32+"'\nsleep 0.5\n")
	capture := NewFFMPEGCapture(script)
	collector := newBlockCollector()

	session, err := capture.Start(context.Background(), ports.AudioConfig{BlockFrames: 2}, collector.sink)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	collector.waitFinal(t)

	blocks, finals := collector.snapshot()
	if finals != 1 {
		t.Fatalf("expected exactly one final block, got %d", finals)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected full block plus final tail, got %v", blocks)
	}
	if len(blocks[0]) != 2 || len(blocks[1]) != 1 {
		t.Fatalf("unexpected block sizes: %v", blocks)
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{}, func([]float32, bool) {})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func TestStringsTrimSpaceSafe(t *testing.T) {
	t.Parallel()

	if got := stringsTrimSpaceSafe("  hi\n"); got != "hi" {
		t.Fatalf("unexpected trim result: %q", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
