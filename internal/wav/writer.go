package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrWriterFinalized is returned by Append once the writer has been
// finalized or aborted.
var ErrWriterFinalized = errors.New("wav: writer already finalized")

const headerSize = 44

// Writer streams float32 sample blocks into a 16-bit PCM WAV file. Open
// writes a provisional header whose size fields are zero; Finalize patches
// them once the data length is known. Until Finalize succeeds the file is
// not a valid container.
type Writer struct {
	path       string
	file       *os.File
	sampleRate int
	channels   int
	bitDepth   int
	dataBytes  uint32
	finalized  bool
}

// Open creates path (truncating any existing file) and writes the
// provisional header.
func Open(path string, sampleRate, channels, bitDepth int) (*Writer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav: invalid format %dHz/%dch", sampleRate, channels)
	}
	if bitDepth != 16 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d", bitDepth)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav: create file: %w", err)
	}

	w := &Writer{
		path:       path,
		file:       file,
		sampleRate: sampleRate,
		channels:   channels,
		bitDepth:   bitDepth,
	}
	if err := w.writeHeader(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("wav: write header: %w", err)
	}
	return w, nil
}

// Path returns the file path the writer was opened with.
func (w *Writer) Path() string { return w.path }

// BytesWritten returns the running count of audio data bytes written so far.
func (w *Writer) BytesWritten() uint32 { return w.dataBytes }

// Append converts samples to little-endian int16 with clamped rounding and
// writes them after any previously appended data. An empty slice is a no-op.
func (w *Writer) Append(samples []float32) error {
	if w.finalized {
		return ErrWriterFinalized
	}
	if len(samples) == 0 {
		return nil
	}

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(EncodeSample(s)))
	}

	n, err := w.file.Write(buf)
	w.dataBytes += uint32(n)
	if err != nil {
		return fmt.Errorf("wav: append samples: %w", err)
	}
	return nil
}

// Finalize closes the sequential write and patches the RIFF chunk size
// (offset 4) and data sub-chunk size (offset 40) so the container reflects
// the audio actually written. Calling it again is a no-op.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wav: close file: %w", err)
	}

	file, err := os.OpenFile(w.path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("wav: reopen for header patch: %w", err)
	}
	if err := patchSizes(file, w.dataBytes); err != nil {
		_ = file.Close()
		return fmt.Errorf("wav: patch header: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("wav: close after patch: %w", err)
	}
	return nil
}

// Abort closes the file without patching the header. The caller is expected
// to discard the file; its size fields still read zero.
func (w *Writer) Abort() error {
	if w.finalized {
		return nil
	}
	w.finalized = true
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wav: close file: %w", err)
	}
	return nil
}

// EncodeSample clamps s to [-1, 1] and rounds to a 16-bit sample.
func EncodeSample(s float32) int16 {
	v := float64(s)
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Round(v * 32767))
}

// Marshal renders samples as one complete in-memory PCM16 WAV file. Unlike
// Writer, the sizes are known upfront, so no patching pass is needed.
func Marshal(samples []float32, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("wav: invalid format %dHz/%dch", sampleRate, channels)
	}
	dataBytes := uint32(len(samples) * 2)

	var buf bytes.Buffer
	buf.Grow(headerSize + int(dataBytes))
	if err := writePCMHeader(&buf, sampleRate, channels, 16, uint32(headerSize-8)+dataBytes, dataBytes); err != nil {
		return nil, fmt.Errorf("wav: write header: %w", err)
	}

	pcm := make([]byte, dataBytes)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(EncodeSample(s)))
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

func (w *Writer) writeHeader() error {
	// Provisional header: size fields stay zero until Finalize.
	return writePCMHeader(w.file, w.sampleRate, w.channels, w.bitDepth, 0, 0)
}

func writePCMHeader(dst io.Writer, sampleRate, channels, bitDepth int, riffSize, dataSize uint32) error {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	h := struct {
		RiffID   [4]byte
		RiffSize uint32
		WaveID   [4]byte

		FmtID       [4]byte
		FmtSize     uint32
		AudioFormat uint16
		NumChannels uint16
		SampleRate  uint32
		ByteRate    uint32
		BlockAlign  uint16
		BitsPerSamp uint16

		DataID   [4]byte
		DataSize uint32
	}{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    riffSize,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     16,
		AudioFormat: 1, // PCM
		NumChannels: uint16(channels),
		SampleRate:  uint32(sampleRate),
		ByteRate:    uint32(byteRate),
		BlockAlign:  uint16(blockAlign),
		BitsPerSamp: uint16(bitDepth),
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    dataSize,
	}

	return binary.Write(dst, binary.LittleEndian, &h)
}

func patchSizes(file *os.File, dataBytes uint32) error {
	if _, err := file.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(file, binary.LittleEndian, uint32(headerSize-8)+dataBytes); err != nil {
		return err
	}
	if _, err := file.Seek(40, io.SeekStart); err != nil {
		return err
	}
	return binary.Write(file, binary.LittleEndian, dataBytes)
}
