// Package evidence builds downloadable evidence packs from the audit trail.
// A pack is a zip archive containing the audit entries for one user over a
// time range, a manifest with the chain head, and a checksum the recipient
// can verify independently.
package evidence

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sagelight/dreamer/pkg/audit"
)

var (
	// ErrEmptyUserID is returned when the user ID is empty.
	ErrEmptyUserID = errors.New("evidence: user_id must not be empty")
	// ErrInvalidTimeRange is returned when start time is after end time.
	ErrInvalidTimeRange = errors.New("evidence: start_time must be before end_time")
	// ErrLogNotConfigured is returned when export is invoked without a backing log.
	ErrLogNotConfigured = errors.New("evidence: audit log not configured (fail-closed)")
)

// ExportRequest defines what to export.
type ExportRequest struct {
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Exporter assembles evidence packs from an audit log.
type Exporter struct {
	log *audit.Log
}

// NewExporter creates an exporter backed by the given audit log.
func NewExporter(l *audit.Log) *Exporter {
	return &Exporter{log: l}
}

// GeneratePack creates a zip archive of audit entries plus a manifest, and
// returns the archive bytes together with its SHA-256 checksum.
func (e *Exporter) GeneratePack(ctx context.Context, req ExportRequest) ([]byte, string, error) {
	if req.UserID == "" {
		return nil, "", ErrEmptyUserID
	}
	if !req.StartTime.IsZero() && !req.EndTime.IsZero() && req.StartTime.After(req.EndTime) {
		return nil, "", ErrInvalidTimeRange
	}
	if e.log == nil {
		return nil, "", ErrLogNotConfigured
	}

	entries := e.log.EntriesBetween(req.StartTime, req.EndTime)
	filtered := entries[:0:0]
	for _, entry := range entries {
		if entry.Actor == req.UserID {
			filtered = append(filtered, entry)
		}
	}

	entriesJSON, err := json.MarshalIndent(filtered, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("evidence: failed to marshal entries: %w", err)
	}

	var chainHead string
	if len(filtered) > 0 {
		chainHead = filtered[len(filtered)-1].Hash
	}
	manifest := map[string]any{
		"user_id":      req.UserID,
		"generated_at": time.Now().UTC(),
		"entry_count":  len(filtered),
		"chain_head":   chainHead,
		"period": map[string]any{
			"start": req.StartTime,
			"end":   req.EndTime,
		},
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("evidence: failed to marshal manifest: %w", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	f, err := w.Create("entries.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(entriesJSON)

	f, err = w.Create("manifest.json")
	if err != nil {
		return nil, "", err
	}
	_, _ = f.Write(manifestJSON)

	f, err = w.Create("README.txt")
	if err != nil {
		return nil, "", err
	}
	_, _ = fmt.Fprintf(f, "Evidence pack for user %s\nGenerated at %s\n", req.UserID, time.Now().UTC())

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	zipBytes := buf.Bytes()
	hash := sha256.Sum256(zipBytes)
	checksum := hex.EncodeToString(hash[:])

	return zipBytes, checksum, nil
}
