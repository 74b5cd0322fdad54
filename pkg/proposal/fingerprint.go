package proposal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Fingerprint returns a stable identity for deduplication: the SHA-256 of
// the JCS-canonicalized (type, title, change) triple. Two drafts proposing
// the same change to the same user surface are considered duplicates even
// when their scores or reasoning text differ.
func (p *Proposal) Fingerprint() (string, error) {
	changeJSON := []byte("null")
	if p.Change != nil {
		var err error
		changeJSON, err = EncodeChange(p.Change)
		if err != nil {
			return "", err
		}
	}

	raw, err := json.Marshal(map[string]any{
		"proposal_type": p.Type,
		"title":         p.Title,
		"change":        json.RawMessage(changeJSON),
	})
	if err != nil {
		return "", fmt.Errorf("proposal: fingerprint marshal: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("proposal: fingerprint canonicalize: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
