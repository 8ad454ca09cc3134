package deepgram

import (
	"strings"
	"sync"
)

// transcriptEvent is one decoded transcript message from the provider.
type transcriptEvent struct {
	text  string
	final bool
}

// transcriptAggregator merges interim and final transcript events into one
// session transcript. Finals accumulate in order; the newest interim covers
// whatever tail has no final yet.
type transcriptAggregator struct {
	mu         sync.Mutex
	finals     []string
	lastSpoken string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event transcriptEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(event.text)
	if text == "" {
		return
	}
	a.lastSpoken = text
	if event.final {
		a.finals = append(a.finals, text)
	}
}

func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	if joined == "" {
		return a.lastSpoken
	}

	if a.lastSpoken == "" {
		return joined
	}

	if strings.HasSuffix(joined, a.lastSpoken) {
		return joined
	}

	if len(a.lastSpoken) > len(joined) {
		return strings.TrimSpace(joined + " " + a.lastSpoken)
	}

	return joined
}

func drainTranscripts(session *streamingSession, agg *transcriptAggregator) {
	for event := range session.events {
		agg.Add(event)
	}
}
