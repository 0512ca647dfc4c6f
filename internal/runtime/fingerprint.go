package runtime

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/capkit/capkit/internal/runtime/jsoncodec"
)

// Fingerprint is the cache key derived from the semantically relevant fields
// of a request.
type Fingerprint uint64

func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}

// fingerprintFields is the exact set of request fields that may influence the
// domain result. ID and SubmittedAt are per-call noise and must stay out;
// Priority only affects scheduling, never the produced output.
type fingerprintFields struct {
	Payload  any               `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ComputeFingerprint derives the deterministic cache key for a request. The
// payload is canonically JSON-encoded (std-compatible encoding sorts map keys)
// and digested with xxhash. Two requests with equal fingerprints are treated
// as equivalent for caching purposes, so any payload field that changes the
// domain output must survive JSON encoding.
func ComputeFingerprint(req *Request) (Fingerprint, error) {
	encoded, err := jsoncodec.Marshal(fingerprintFields{
		Payload:  req.Payload,
		Metadata: req.Metadata,
	})
	if err != nil {
		return 0, fmt.Errorf("capkit: fingerprinting request %s: %w", req.ID, err)
	}
	return Fingerprint(xxhash.Sum64(encoded)), nil
}
