package evidence

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidChecksum is returned when a pack reference carries a malformed checksum.
var ErrInvalidChecksum = errors.New("evidence: invalid checksum format")

// ObjectStore persists evidence packs in durable object storage, keyed by
// their SHA-256 checksum so re-uploading the same pack is idempotent.
type ObjectStore interface {
	// Put stores a pack under the given checksum and returns the object key.
	Put(ctx context.Context, checksum string, data []byte) (string, error)
	// Get retrieves a pack by its checksum.
	Get(ctx context.Context, checksum string) ([]byte, error)
	// Exists reports whether a pack with the given checksum is stored.
	Exists(ctx context.Context, checksum string) (bool, error)
}

const checksumHexLen = 64

func objectKey(prefix, checksum string) (string, error) {
	if len(checksum) != checksumHexLen {
		return "", fmt.Errorf("%w: %q", ErrInvalidChecksum, checksum)
	}
	return prefix + checksum + ".zip", nil
}
