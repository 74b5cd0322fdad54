package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sagelight/dreamer/pkg/dreamer"
	"github.com/sagelight/dreamer/pkg/evidence"
	"github.com/sagelight/dreamer/pkg/pattern"
	"github.com/sagelight/dreamer/pkg/review"
)

// EventRecorder accepts incoming behavioral telemetry.
type EventRecorder interface {
	RecordEvent(ctx context.Context, userID string, ev pattern.Event) error
}

// Server exposes the pipeline over HTTP. Transport only: every decision
// lives in the dreamer service and the review workflow.
type Server struct {
	svc      *dreamer.Service
	workflow *review.Workflow
	recorder EventRecorder
	exporter *evidence.Exporter
	packs    evidence.ObjectStore
	logger   *slog.Logger
}

// NewServer wires the HTTP surface.
func NewServer(svc *dreamer.Service, workflow *review.Workflow) *Server {
	return &Server{
		svc:      svc,
		workflow: workflow,
		logger:   slog.Default().With("component", "api"),
	}
}

// EnableIngestion turns on the telemetry ingestion endpoint.
func (s *Server) EnableIngestion(rec EventRecorder) {
	s.recorder = rec
}

// EnableEvidence turns on the evidence export endpoint. The object store is
// optional; when nil, packs are returned to the caller but not archived.
func (s *Server) EnableEvidence(exp *evidence.Exporter, packs evidence.ObjectStore) {
	s.exporter = exp
	s.packs = packs
}

// Routes registers all handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dreamer/run", s.handleRun)
	mux.HandleFunc("/api/proposals/pending", s.handlePending)
	mux.HandleFunc("/api/proposals/", s.handleProposalAction)
	mux.HandleFunc("/api/rewards", s.handleRewards)
	mux.HandleFunc("/api/evidence/export", s.handleEvidenceExport)
	mux.HandleFunc("/api/events", s.handleEvents)
	return mux
}

// userID pulls the acting user from the request. Authentication itself
// is handled upstream; the gateway injects the header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	uid := userID(r)
	if uid == "" {
		WriteBadRequest(w, "missing X-User-ID header")
		return
	}
	result, err := s.svc.RunAnalysis(r.Context(), uid)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	uid := userID(r)
	if uid == "" {
		WriteBadRequest(w, "missing X-User-ID header")
		return
	}
	pending, err := s.workflow.ListPending(r.Context(), uid)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": pending})
}

// handleProposalAction routes /api/proposals/{id}/approve and
// /api/proposals/{id}/reject.
func (s *Server) handleProposalAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	uid := userID(r)
	if uid == "" {
		WriteBadRequest(w, "missing X-User-ID header")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/proposals/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		WriteNotFound(w, "unknown proposal path")
		return
	}
	proposalID, action := parts[0], parts[1]

	switch action {
	case "approve":
		title, err := s.workflow.Approve(r.Context(), uid, proposalID)
		if err != nil {
			s.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"proposal_title": title})
	case "reject":
		var body struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body) // reason is optional
		}
		if err := s.workflow.Reject(r.Context(), uid, proposalID, body.Reason); err != nil {
			s.writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		WriteNotFound(w, "unknown proposal action")
	}
}

func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	uid := userID(r)
	if uid == "" {
		WriteBadRequest(w, "missing X-User-ID header")
		return
	}
	rewards, err := s.workflow.GetRewards(r.Context(), uid)
	if err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

// handleEvents ingests one telemetry event from the client.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.recorder == nil {
		WriteNotFound(w, "event ingestion not enabled")
		return
	}
	uid := userID(r)
	if uid == "" {
		WriteBadRequest(w, "missing X-User-ID header")
		return
	}

	var ev pattern.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		WriteBadRequest(w, "invalid event payload")
		return
	}
	if ev.Type == "" {
		WriteBadRequest(w, "event type is required")
		return
	}
	if err := s.recorder.RecordEvent(r.Context(), uid, ev); err != nil {
		WriteInternal(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{})
}

// handleEvidenceExport streams a zip of the caller's audit trail. Optional
// from/to query parameters (RFC 3339) bound the range.
func (s *Server) handleEvidenceExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}
	if s.exporter == nil {
		WriteNotFound(w, "evidence export not enabled")
		return
	}
	uid := userID(r)
	if uid == "" {
		WriteBadRequest(w, "missing X-User-ID header")
		return
	}

	req := evidence.ExportRequest{UserID: uid}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			WriteBadRequest(w, "invalid 'from' timestamp, want RFC 3339")
			return
		}
		req.StartTime = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			WriteBadRequest(w, "invalid 'to' timestamp, want RFC 3339")
			return
		}
		req.EndTime = t
	}

	pack, checksum, err := s.exporter.GeneratePack(r.Context(), req)
	if err != nil {
		if errors.Is(err, evidence.ErrInvalidTimeRange) {
			WriteBadRequest(w, "start time must be before end time")
			return
		}
		WriteInternal(w, err)
		return
	}

	if s.packs != nil {
		key, err := s.packs.Put(r.Context(), checksum, pack)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "evidence pack archive failed", "error", err)
		} else {
			w.Header().Set("X-Evidence-Key", key)
		}
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("X-Evidence-Checksum", checksum)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pack)
}

// writeWorkflowError maps workflow errors onto the typed responses the
// UI can explain: 404, 409 for the idempotency guard, 429 with a
// Retry-After for both rate-limit tiers.
func (s *Server) writeWorkflowError(w http.ResponseWriter, err error) {
	var rl *review.RateLimitedError
	switch {
	case errors.Is(err, review.ErrNotFound):
		WriteNotFound(w, "proposal not found")
	case errors.Is(err, review.ErrAlreadyResolved):
		WriteConflict(w, "proposal already resolved; refresh the pending list")
	case errors.As(err, &rl):
		if rl.Strict {
			WriteTooManyRequests(w, int(rl.RetryAfter.Seconds()))
			return
		}
		w.Header().Set("Retry-After", "2")
		WriteError(w, http.StatusTooManyRequests, "Try Again Shortly",
			"Actions are limited to one every 2 seconds.")
	default:
		WriteInternal(w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
