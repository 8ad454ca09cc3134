package sound

import (
	"testing"
	"time"
)

func TestRenderCueProducesBoundedPCM(t *testing.T) {
	t.Parallel()

	for _, cue := range []Cue{CueStart, CueStop, CueCancel, CuePaste} {
		pcm := renderCue(cue, cueSampleRate, 0.5)
		if len(pcm) == 0 {
			t.Fatalf("cue %q rendered no samples", cue)
		}
		if len(pcm)%2 != 0 {
			t.Fatalf("cue %q rendered a partial sample", cue)
		}

		var peak int
		for i := 0; i < len(pcm); i += 2 {
			s := int(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		if peak == 0 {
			t.Fatalf("cue %q is silent", cue)
		}
		if limit := int(0.5*32767) + 1; peak > limit {
			t.Fatalf("cue %q peak %d exceeds volume limit %d", cue, peak, limit)
		}
	}
}

func TestRenderCueFadesEdges(t *testing.T) {
	t.Parallel()

	pcm := renderCue(CueCancel, cueSampleRate, 1.0)
	first := int16(uint16(pcm[0]) | uint16(pcm[1])<<8)
	last := int16(uint16(pcm[len(pcm)-2]) | uint16(pcm[len(pcm)-1])<<8)
	if first != 0 {
		t.Fatalf("expected silent first sample, got %d", first)
	}
	if last != 0 {
		t.Fatalf("expected silent last sample, got %d", last)
	}
}

func TestRenderCueClampsVolume(t *testing.T) {
	t.Parallel()

	pcm := renderCue(CuePaste, cueSampleRate, 4.0)
	for i := 0; i < len(pcm); i += 2 {
		s := int(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		if s > 32767 || s < -32767 {
			t.Fatalf("sample %d out of range: %d", i/2, s)
		}
	}
}

func TestAppendToneIgnoresZeroDuration(t *testing.T) {
	t.Parallel()

	if pcm := appendTone(nil, 440, 0, cueSampleRate, 1.0); len(pcm) != 0 {
		t.Fatalf("expected no samples for zero duration, got %d bytes", len(pcm))
	}
	if pcm := appendTone(nil, 440, time.Millisecond, 0, 1.0); len(pcm) != 0 {
		t.Fatalf("expected no samples for zero rate, got %d bytes", len(pcm))
	}
}

func TestNilPlayerIsSilent(t *testing.T) {
	t.Parallel()

	var p *Player
	p.Play(CueStart)
	p.Play(CueCancel)
}
