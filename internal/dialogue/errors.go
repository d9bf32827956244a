package dialogue

import "errors"

var (
	// ErrSynthesis is returned (wrapped) when speech could not be produced for a line.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrMalformedAudio marks an audio payload that cannot be turned back into samples.
	ErrMalformedAudio = errors.New("malformed audio payload")
	// ErrMalformedSnapshot marks a snapshot that does not match the fixed schema.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrUnknownKind       = errors.New("unknown message kind")
	ErrUnknownTarget     = errors.New("unknown message target")
)
