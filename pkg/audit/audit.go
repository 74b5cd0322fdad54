// Package audit records governance rejections, review decisions and
// detected issues as hash-chained, tamper-evident entries. Writes are
// best-effort by contract: a failed audit write must never block the
// request path that produced it.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// Action names used across the pipeline.
const (
	ActionGovernanceRejected = "governance_rejected"
	ActionProposalApproved   = "proposal_approved"
	ActionProposalRejected   = "proposal_rejected"
	ActionIssueDetected      = "issue_detected"
	ActionAnalysisRun        = "analysis_run"
)

// Entry is one tamper-evident audit record. PreviousHash links it to the
// preceding entry; Hash covers everything including that link.
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	Target       string         `json:"target"`
	Details      map[string]any `json:"details,omitempty"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// Log is an append-only, hash-chained audit log with an optional
// JSON-lines sink.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	sink    io.Writer
	clock   func() time.Time
	logger  *slog.Logger
}

// NewLog creates a Log. sink may be nil for in-memory only.
func NewLog(sink io.Writer) *Log {
	return &Log{
		sink:   sink,
		clock:  time.Now,
		logger: slog.Default().With("component", "audit"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (l *Log) WithClock(clock func() time.Time) *Log {
	l.clock = clock
	return l
}

// Append adds one entry, chaining it to the previous.
func (l *Log) Append(actor, action, target string, details map[string]any) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := ""
	if len(l.entries) > 0 {
		prevHash = l.entries[len(l.entries)-1].Hash
	}

	entry := Entry{
		ID:           uuid.New().String(),
		Timestamp:    l.clock().UTC(),
		Actor:        actor,
		Action:       action,
		Target:       target,
		Details:      details,
		PreviousHash: prevHash,
	}
	hash, err := entryHash(&entry)
	if err != nil {
		return nil, err
	}
	entry.Hash = hash

	l.entries = append(l.entries, entry)

	if l.sink != nil {
		line, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("audit: encode entry: %w", err)
		}
		if _, err := l.sink.Write(append(line, '\n')); err != nil {
			return nil, fmt.Errorf("audit: write entry: %w", err)
		}
	}
	return &entry, nil
}

// TryAppend is the best-effort wrapper used on request paths: failures
// are logged and swallowed.
func (l *Log) TryAppend(actor, action, target string, details map[string]any) {
	if _, err := l.Append(actor, action, target, details); err != nil {
		l.logger.Error("audit append failed", "action", action, "target", target, "error", err)
	}
}

// Entries returns a copy of the in-memory chain.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesBetween returns entries within [start, end], inclusive.
func (l *Log) EntriesBetween(start, end time.Time) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// VerifyChain checks link integrity and content hashes over the whole log.
func (l *Log) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		e := l.entries[i]
		if i == 0 {
			if e.PreviousHash != "" {
				return fmt.Errorf("audit: genesis entry has non-empty previous hash")
			}
		} else if e.PreviousHash != l.entries[i-1].Hash {
			return fmt.Errorf("audit: chain broken at index %d", i)
		}

		computed, err := entryHash(&e)
		if err != nil {
			return fmt.Errorf("audit: recompute hash at index %d: %w", i, err)
		}
		if computed != e.Hash {
			return fmt.Errorf("audit: integrity failure at index %d", i)
		}
	}
	return nil
}

// entryHash hashes the JCS-canonical form of the entry minus its own Hash.
func entryHash(e *Entry) (string, error) {
	raw, err := json.Marshal(map[string]any{
		"id":            e.ID,
		"timestamp":     e.Timestamp.Format(time.RFC3339Nano),
		"actor":         e.Actor,
		"action":        e.Action,
		"target":        e.Target,
		"details":       e.Details,
		"previous_hash": e.PreviousHash,
	})
	if err != nil {
		return "", fmt.Errorf("audit: marshal for hash: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("audit: canonicalize for hash: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
