// Package sound plays short feedback cues through the system audio output.
package sound

import (
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/oto"
	"go.uber.org/zap"
)

// Cue identifies one of the fixed feedback tones.
type Cue string

const (
	CueStart  Cue = "start"
	CueStop   Cue = "stop"
	CueCancel Cue = "cancel"
	CuePaste  Cue = "paste"
)

const (
	cueSampleRate = 44100
	fadeDuration  = 5 * time.Millisecond
)

// oto supports a single context per process.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		otoCtx, otoErr = oto.NewContext(cueSampleRate, 1, 2, 8192)
	})
	return otoCtx, otoErr
}

// Player synthesizes cue tones and writes them to the audio device. A nil
// Player is valid and silent, so callers need no guard when audio output is
// unavailable on the host.
type Player struct {
	ctx    *oto.Context
	volume func() float64
	logger *zap.Logger
}

// NewPlayer opens the audio output. volume is read per cue so a preference
// change applies to the next tone.
func NewPlayer(volume func() float64, logger *zap.Logger) (*Player, error) {
	ctx, err := sharedContext()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Player{ctx: ctx, volume: volume, logger: logger}, nil
}

// Play renders the cue at the current volume and plays it without blocking
// the caller. Playback failures are swallowed.
func (p *Player) Play(cue Cue) {
	if p == nil || p.ctx == nil {
		return
	}
	vol := 1.0
	if p.volume != nil {
		vol = p.volume()
	}
	if vol <= 0 {
		return
	}
	pcm := renderCue(cue, cueSampleRate, vol)
	if len(pcm) == 0 {
		return
	}

	go func() {
		player := p.ctx.NewPlayer()
		if _, err := player.Write(pcm); err != nil {
			p.logger.Debug("cue playback failed", zap.String("cue", string(cue)), zap.Error(err))
		}
		_ = player.Close()
	}()
}

// renderCue returns 16-bit LE mono PCM for the cue.
func renderCue(cue Cue, rate int, volume float64) []byte {
	if volume > 1 {
		volume = 1
	}
	var pcm []byte
	switch cue {
	case CueStart:
		pcm = appendTone(pcm, 660, 60*time.Millisecond, rate, volume)
		pcm = appendTone(pcm, 880, 60*time.Millisecond, rate, volume)
	case CueStop:
		pcm = appendTone(pcm, 880, 60*time.Millisecond, rate, volume)
		pcm = appendTone(pcm, 660, 60*time.Millisecond, rate, volume)
	case CueCancel:
		pcm = appendTone(pcm, 330, 120*time.Millisecond, rate, volume)
	case CuePaste:
		pcm = appendTone(pcm, 1100, 45*time.Millisecond, rate, volume)
	}
	return pcm
}

// appendTone writes a faded sine burst so cue edges do not click.
func appendTone(pcm []byte, freq float64, dur time.Duration, rate int, volume float64) []byte {
	n := int(float64(rate) * dur.Seconds())
	if n <= 0 {
		return pcm
	}
	fade := int(float64(rate) * fadeDuration.Seconds())
	if fade > n/4 {
		fade = n / 4
	}

	for i := 0; i < n; i++ {
		envelope := 1.0
		if fade > 0 {
			if i < fade {
				envelope = float64(i) / float64(fade)
			} else if n-1-i < fade {
				envelope = float64(n-1-i) / float64(fade)
			}
		}
		v := math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * volume * envelope
		s := int16(math.Round(v * 32767))
		pcm = append(pcm, byte(s), byte(s>>8))
	}
	return pcm
}
