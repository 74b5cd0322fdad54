// Package dreamer orchestrates one analysis pass: telemetry in, scored
// and governance-gated proposals out. The service owns no business rules
// itself; every stage is an explicit collaborator so each is swappable
// and independently testable.
package dreamer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sagelight/dreamer/pkg/audit"
	"github.com/sagelight/dreamer/pkg/governance"
	"github.com/sagelight/dreamer/pkg/healing"
	"github.com/sagelight/dreamer/pkg/metering"
	"github.com/sagelight/dreamer/pkg/pattern"
	"github.com/sagelight/dreamer/pkg/proposal"
	"github.com/sagelight/dreamer/pkg/scoring"
	"github.com/sagelight/dreamer/pkg/store"
	"github.com/sagelight/dreamer/pkg/templates"
)

// eventFetchLimit bounds how much telemetry one run considers.
const eventFetchLimit = 500

// PreferenceSource supplies the user's current platform preferences.
// Settings storage is owned by the wider platform; the pipeline only
// reads a snapshot.
type PreferenceSource interface {
	GetPreferences(ctx context.Context, userID string) (governance.Preferences, error)
}

// StaticPreferences is a PreferenceSource returning a fixed value, for
// tests and single-tenant deployments.
type StaticPreferences governance.Preferences

func (s StaticPreferences) GetPreferences(context.Context, string) (governance.Preferences, error) {
	return governance.Preferences(s), nil
}

// Result summarizes one analysis run.
type Result struct {
	ProposalsGenerated int  `json:"proposals_generated"`
	Degraded           bool `json:"degraded,omitempty"`
}

// Service is the pipeline orchestrator.
type Service struct {
	events   pattern.Source
	analyzer pattern.Analyzer
	prefs    PreferenceSource
	library  *templates.Library
	scorer   scoring.Scorer
	checker  *governance.Checker
	store    store.Store
	monitor  *healing.Monitor
	auditor  *audit.Log
	meter    metering.Meter
	platform governance.PlatformConfig
	logger   *slog.Logger
}

// Config collects the service's collaborators.
type Config struct {
	Events   pattern.Source
	Analyzer pattern.Analyzer
	Prefs    PreferenceSource
	Library  *templates.Library
	Checker  *governance.Checker
	Store    store.Store
	Monitor  *healing.Monitor
	Auditor  *audit.Log
	Meter    metering.Meter
	Platform governance.PlatformConfig
}

// New builds the Service. Library defaults to the built-in template set;
// Prefs defaults to empty preferences; Meter may be nil.
func New(cfg Config) *Service {
	lib := cfg.Library
	if lib == nil {
		lib = templates.Default()
	}
	prefs := cfg.Prefs
	if prefs == nil {
		prefs = StaticPreferences{}
	}
	return &Service{
		events:   cfg.Events,
		analyzer: cfg.Analyzer,
		prefs:    prefs,
		library:  lib,
		scorer:   scoring.New(),
		checker:  cfg.Checker,
		store:    cfg.Store,
		monitor:  cfg.Monitor,
		auditor:  cfg.Auditor,
		meter:    cfg.Meter,
		platform: cfg.Platform,
		logger:   slog.Default().With("component", "dreamer"),
	}
}

// RunAnalysis executes one full pipeline pass for the user. Upstream
// failures degrade to zero proposals rather than propagating: a failed
// enrichment run must never corrupt the existing pending set.
func (s *Service) RunAnalysis(ctx context.Context, userID string) (*Result, error) {
	s.recordUsage(ctx, userID, metering.EventAnalysisRun, 1)

	// Read-side fan-out: the three inputs are independent, so fetch
	// them concurrently before the single-threaded pipeline starts.
	var (
		wg        sync.WaitGroup
		events    []pattern.Event
		eventsErr error
		prefs     governance.Preferences
		prefsErr  error
		usage     *metering.Summary
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		events, eventsErr = s.events.ListRecentEvents(ctx, userID, eventFetchLimit)
	}()
	go func() {
		defer wg.Done()
		prefs, prefsErr = s.prefs.GetPreferences(ctx, userID)
	}()
	if s.meter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if usage, err = s.meter.Summarize(ctx, userID); err != nil {
				s.logger.Warn("usage summary unavailable", "user", userID, "error", err)
			}
		}()
	}
	wg.Wait()

	if eventsErr != nil {
		s.logger.Error("event source unavailable, degrading run", "user", userID, "error", eventsErr)
		return &Result{Degraded: true}, nil
	}
	if prefsErr != nil {
		s.logger.Warn("preference source unavailable, using defaults", "user", userID, "error", prefsErr)
		prefs = governance.Preferences{}
	}

	up, err := pattern.Extract(events)
	if errors.Is(err, pattern.ErrInsufficientSignal) {
		s.logger.Info("insufficient signal, run aborted", "user", userID, "events", len(events))
		return &Result{}, nil
	}
	if err != nil {
		return nil, err
	}

	var analysis *pattern.Analysis
	if s.analyzer != nil {
		if analysis, err = s.analyzer.Analyze(ctx, events, nil); err != nil {
			s.logger.Error("semantic analyzer unavailable, degrading run", "user", userID, "error", err)
			return &Result{Degraded: true}, nil
		}
	}
	sp := pattern.BuildProfile(analysis, up, prefs.Theme)

	drafts := s.library.Generate(up, sp)
	drafts = append(drafts, s.healingDrafts(userID)...)

	gctx := &governance.Context{
		UserID:      userID,
		Preferences: prefs,
		Platform:    s.platform,
		EvaluatedAt: time.Now().UTC(),
	}
	if usage != nil {
		gctx.Usage = governance.UsageSummary{
			AnalysisRuns:  usage.AnalysisRuns,
			ReviewActions: usage.ReviewActions,
			ProposalsSeen: usage.ProposalsSeen,
		}
	}

	approved := s.gate(ctx, userID, drafts, up, sp, gctx)

	added, err := store.CommitPending(ctx, s.store, userID, approved)
	if err != nil {
		s.logger.Error("pending commit failed, degrading run", "user", userID, "error", err)
		return &Result{Degraded: true}, nil
	}

	s.recordUsage(ctx, userID, metering.EventProposal, int64(added))
	if s.auditor != nil {
		s.auditor.TryAppend(userID, audit.ActionAnalysisRun, userID, map[string]any{
			"events":    len(events),
			"drafts":    len(drafts),
			"persisted": added,
		})
	}
	return &Result{ProposalsGenerated: added}, nil
}

// gate scores drafts, drops sub-threshold ones, and runs governance over
// the survivors. Rejections become permanent audit records; they never
// touch the pending set.
func (s *Service) gate(ctx context.Context, userID string, drafts []*proposal.Proposal, up *pattern.UserPattern, sp *pattern.SemanticProfile, gctx *governance.Context) []*proposal.Proposal {
	var approved []*proposal.Proposal
	for _, draft := range drafts {
		score := s.scorer.Score(draft, up, sp)
		if !draft.Metadata.SelfHealing && !scoring.Passes(score) {
			// Below the gate a draft was never "proposed": no
			// history record, no rejection log. Self-healing fixes
			// skip the gate; their signal is the issue itself.
			continue
		}
		draft.Metadata.QualityScore = score

		candidate := governance.Sanitize(draft)
		decision := s.checker.Check(candidate, gctx)
		if !decision.Approved {
			s.recordRejection(ctx, userID, candidate, decision)
			continue
		}
		candidate.Metadata.GovernanceApproved = true
		approved = append(approved, candidate)
	}
	return approved
}

// healingDrafts sweeps the monitor, logs every issue, and converts each
// into a fix proposal. Issue logging happens whether or not governance
// later blocks the fix.
func (s *Service) healingDrafts(userID string) []*proposal.Proposal {
	if s.monitor == nil {
		return nil
	}
	var drafts []*proposal.Proposal
	for _, issue := range s.monitor.Sweep() {
		if s.auditor != nil {
			s.auditor.TryAppend("system", audit.ActionIssueDetected, issue.AffectedComponent, map[string]any{
				"issue_type": string(issue.Type),
				"severity":   string(issue.Severity),
				"details":    issue.ErrorDetails,
			})
		}
		draft, err := healing.ProposeFix(issue)
		if err != nil {
			s.logger.Error("fix proposal failed", "issue", issue.Type, "error", err)
			continue
		}
		draft.UserID = userID
		drafts = append(drafts, draft)
	}
	return drafts
}

// recordRejection persists the sanitized proposal as a permanent
// rejected record with its violation report.
func (s *Service) recordRejection(ctx context.Context, userID string, p *proposal.Proposal, decision governance.Decision) {
	report := strings.Join(decision.Violations, "; ")
	p.UserID = userID
	p.Status = proposal.StatusRejected
	p.RejectionReason = report
	p.Metadata.GovernanceApproved = false
	p.ResolvedAt = time.Now().UTC()

	if err := s.store.InsertProposal(ctx, p); err != nil {
		s.logger.Error("rejection record failed", "user", userID, "title", p.Title, "error", err)
	}
	if s.auditor != nil {
		s.auditor.TryAppend(userID, audit.ActionGovernanceRejected, p.Title, map[string]any{
			"violations": decision.Violations,
		})
	}
}

func (s *Service) recordUsage(ctx context.Context, userID string, t metering.EventType, qty int64) {
	if s.meter == nil || qty == 0 {
		return
	}
	if err := s.meter.Record(ctx, metering.Event{UserID: userID, EventType: t, Quantity: qty}); err != nil {
		s.logger.Warn("metering failed", "user", userID, "event", t, "error", err)
	}
}
