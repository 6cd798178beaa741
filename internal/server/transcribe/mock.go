package transcribe

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"
)

var mockTranscriptions = []string{
	"This is a mock transcription of your voice journal entry.",
	"The quick brown fox jumps over the lazy dog.",
	"Voice journaling is a great way to express yourself and keep track of your thoughts.",
	"Today was a productive day, and I learned a lot about Go and PostgreSQL.",
	"Remember to stay hydrated and take breaks while coding!",
}

// Mock simulates a transcription engine: it drains the audio stream, waits
// for a configured processing delay, and returns one of a fixed set of
// phrases.
type Mock struct {
	delay time.Duration

	// pick is a seam for deterministic tests.
	pick func(n int) int
}

// NewMock constructs a Mock with the given simulated processing delay.
func NewMock(delay time.Duration) *Mock {
	return &Mock{delay: delay, pick: rand.IntN}
}

func (m *Mock) Transcribe(ctx context.Context, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", fmt.Errorf("draining audio stream: %w", err)
	}

	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return mockTranscriptions[m.pick(len(mockTranscriptions))], nil
}
