package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sagelight/dreamer/pkg/proposal"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on SQLite via database/sql.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened database and ensures the schema exists.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS proposals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		proposal_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		expected_benefit TEXT,
		ai_reasoning TEXT,
		impact TEXT NOT NULL,
		change JSON NOT NULL,
		status TEXT NOT NULL,
		rejection_reason TEXT,
		metadata JSON,
		fingerprint TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		resolved_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_proposals_user_created ON proposals(user_id, created_at);

	CREATE TABLE IF NOT EXISTS review_queues (
		user_id TEXT PRIMARY KEY,
		pending_ids JSON NOT NULL,
		approved_count INTEGER NOT NULL DEFAULT 0,
		rejected_count INTEGER NOT NULL DEFAULT 0,
		review_streak INTEGER NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

const proposalColumns = `id, user_id, proposal_type, title, description, expected_benefit,
	ai_reasoning, impact, change, status, rejection_reason, metadata, created_at, resolved_at`

// InsertProposal persists a proposal; an empty ID gets a fresh UUID here,
// never earlier — drafts are identity-less by design.
func (s *SQLiteStore) InsertProposal(ctx context.Context, p *proposal.Proposal) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	changeJSON, err := proposal.EncodeChange(p.Change)
	if err != nil {
		return fmt.Errorf("store: encode change: %w", err)
	}
	metaJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("store: encode metadata: %w", err)
	}
	fp, err := p.Fingerprint()
	if err != nil {
		return fmt.Errorf("store: fingerprint: %w", err)
	}

	var resolvedAt any
	if !p.ResolvedAt.IsZero() {
		resolvedAt = p.ResolvedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO proposals (`+proposalColumns+`, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, string(p.Type), p.Title, p.Description, p.ExpectedBenefit,
		p.AIReasoning, string(p.Impact), string(changeJSON), string(p.Status),
		p.RejectionReason, string(metaJSON),
		p.CreatedAt.UTC().Format(time.RFC3339Nano), resolvedAt, fp,
	)
	if err != nil {
		return fmt.Errorf("store: insert proposal: %w", err)
	}
	return nil
}

// GetProposal fetches one proposal by id.
func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ListProposals fetches the given ids in input order; missing ids are skipped.
func (s *SQLiteStore) ListProposals(ctx context.Context, ids []string) ([]*proposal.Proposal, error) {
	out := make([]*proposal.Proposal, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProposal(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ResolveProposal performs the conditional status update. Zero rows
// affected means the proposal was already resolved (or never existed).
func (s *SQLiteStore) ResolveProposal(ctx context.Context, id string, status proposal.Status, reason string, at time.Time) (bool, error) {
	if !proposal.StatusPending.CanTransition(status) {
		return false, proposal.ErrInvalidTransition
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE proposals
		SET status = ?, rejection_reason = ?, resolved_at = ?
		WHERE id = ? AND status = ?`,
		string(status), reason, at.UTC().Format(time.RFC3339Nano), id, string(proposal.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("store: resolve proposal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: resolve proposal rows: %w", err)
	}
	return n == 1, nil
}

// History returns the user's proposal records, newest first.
func (s *SQLiteStore) History(ctx context.Context, userID string, limit int) ([]*proposal.Proposal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+proposalColumns+` FROM proposals
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: history query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetQueue returns the user's review queue, empty when none exists.
func (s *SQLiteStore) GetQueue(ctx context.Context, userID string) (*ReviewQueue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT pending_ids, approved_count, rejected_count, review_streak, points, updated_at
		FROM review_queues WHERE user_id = ?`, userID)

	q := &ReviewQueue{UserID: userID}
	var pendingJSON, updatedAt string
	err := row.Scan(&pendingJSON, &q.ApprovedCount, &q.RejectedCount, &q.ReviewStreak, &q.Points, &updatedAt)
	if err == sql.ErrNoRows {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get queue: %w", err)
	}
	if err := json.Unmarshal([]byte(pendingJSON), &q.PendingIDs); err != nil {
		return nil, fmt.Errorf("store: decode pending ids: %w", err)
	}
	if q.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("store: parse queue timestamp: %w", err)
	}
	return q, nil
}

// SaveQueue upserts the review queue.
func (s *SQLiteStore) SaveQueue(ctx context.Context, q *ReviewQueue) error {
	pendingJSON, err := json.Marshal(q.PendingIDs)
	if err != nil {
		return fmt.Errorf("store: encode pending ids: %w", err)
	}
	q.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_queues (user_id, pending_ids, approved_count, rejected_count, review_streak, points, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			pending_ids = excluded.pending_ids,
			approved_count = excluded.approved_count,
			rejected_count = excluded.rejected_count,
			review_streak = excluded.review_streak,
			points = excluded.points,
			updated_at = excluded.updated_at`,
		q.UserID, string(pendingJSON), q.ApprovedCount, q.RejectedCount,
		q.ReviewStreak, q.Points, q.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: save queue: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProposal(row scanner) (*proposal.Proposal, error) {
	var (
		p                     proposal.Proposal
		typ, impact, status   string
		changeJSON, metaJSON  string
		createdAt             string
		rejectionReason       sql.NullString
		resolvedAt            sql.NullString
	)
	err := row.Scan(&p.ID, &p.UserID, &typ, &p.Title, &p.Description, &p.ExpectedBenefit,
		&p.AIReasoning, &impact, &changeJSON, &status, &rejectionReason, &metaJSON,
		&createdAt, &resolvedAt)
	if err != nil {
		return nil, err
	}

	p.Type = proposal.Type(typ)
	p.Impact = proposal.Impact(impact)
	p.Status = proposal.Status(status)
	p.RejectionReason = rejectionReason.String

	if p.Change, err = proposal.DecodeChange([]byte(changeJSON)); err != nil {
		return nil, fmt.Errorf("store: decode change: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &p.Metadata); err != nil {
		return nil, fmt.Errorf("store: decode metadata: %w", err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("store: parse created_at: %w", err)
	}
	if resolvedAt.Valid && resolvedAt.String != "" {
		if p.ResolvedAt, err = time.Parse(time.RFC3339Nano, resolvedAt.String); err != nil {
			return nil, fmt.Errorf("store: parse resolved_at: %w", err)
		}
	}
	return &p, nil
}
