// Package transcribe defines the speech-to-text collaborator boundary.
// The real engine is external; the server only depends on the Transcriber
// interface so tests (and deployments without an engine) can substitute
// their own implementation.
package transcribe

import (
	"context"
	"io"
)

// Transcriber converts an audio byte stream into text. Implementations must
// fully drain r before returning, even if they discard the content, so the
// underlying large-object read completes inside its transaction.
type Transcriber interface {
	Transcribe(ctx context.Context, r io.Reader) (string, error)
}
