package ingestion

import "context"

// Checkpoint is one sequence-numbered unit of ingested data. Payload is
// opaque to the regulator; a real deployment would carry serialized
// transaction effects and their commit-index provenance here.
type Checkpoint struct {
	Sequence uint64
	Digest   [32]byte
	Payload  []byte
}

// Source fetches one checkpoint by sequence number. Implementations
// must wrap a not-found result as cerrors.ErrTransient so the
// regulator's retry loop applies uniformly to not-found and other
// retryable failures.
type Source interface {
	FetchCheckpoint(ctx context.Context, seq uint64) (*Checkpoint, error)
}
