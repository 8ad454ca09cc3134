// Package audio provides microphone capture backends that push fixed-size
// float32 sample blocks into the session controller.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.uber.org/zap"

	"surasura/internal/ports"
)

const defaultBlockFrames = 1600

// NewCapture selects a capture backend by name.
func NewCapture(backend, ffmpegCommand string, logger *zap.Logger) (ports.AudioCapture, error) {
	switch backend {
	case "", "malgo":
		return NewMalgoCapture(logger), nil
	case "ffmpeg":
		return NewFFMPEGCapture(ffmpegCommand), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}

// f32FromBytes decodes little-endian float32 samples. Trailing bytes that do
// not form a whole sample are dropped.
func f32FromBytes(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

// blockAssembler groups incoming samples into fixed-size blocks.
type blockAssembler struct {
	blockLen int
	pending  []float32
}

func newBlockAssembler(blockLen int) *blockAssembler {
	if blockLen <= 0 {
		blockLen = defaultBlockFrames
	}
	return &blockAssembler{blockLen: blockLen}
}

func (a *blockAssembler) push(samples []float32) [][]float32 {
	a.pending = append(a.pending, samples...)
	var blocks [][]float32
	for len(a.pending) >= a.blockLen {
		block := make([]float32, a.blockLen)
		copy(block, a.pending)
		a.pending = append(a.pending[:0], a.pending[a.blockLen:]...)
		blocks = append(blocks, block)
	}
	return blocks
}

// flush returns whatever tail has not filled a block yet.
func (a *blockAssembler) flush() []float32 {
	tail := a.pending
	a.pending = nil
	return tail
}
