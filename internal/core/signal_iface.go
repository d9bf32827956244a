package core

// Frame is a raw payload. Text frames carry JSON envelopes, binary frames
// carry snapshots.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	// TrySendBinary queues a binary frame (snapshots).
	TrySendBinary(Frame) error
	Close()
}
