package proposal

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNilChange is returned when a proposal has no change payload.
	ErrNilChange = errors.New("proposal: change payload must not be nil")
	// ErrChangeMismatch is returned when the payload variant does not
	// belong to the proposal type.
	ErrChangeMismatch = errors.New("proposal: change variant does not match proposal type")
)

// Change is the closed set of typed change payloads, one variant per
// proposal Type. The pipeline never executes a change; it only ferries it
// to its consumer, so each variant is data plus validation, nothing more.
type Change interface {
	// Kind returns the proposal type this variant belongs to.
	Kind() Type
	// Validate checks the variant's own field constraints.
	Validate() error
}

// ShortcutChange configures a navigation shortcut between two pages.
type ShortcutChange struct {
	FromPage string `json:"from_page"`
	ToPage   string `json:"to_page"`
	Label    string `json:"label"`
}

func (c *ShortcutChange) Kind() Type { return TypeUXChange }

func (c *ShortcutChange) Validate() error {
	if c.FromPage == "" || c.ToPage == "" {
		return errors.New("proposal: shortcut requires from_page and to_page")
	}
	if c.FromPage == c.ToPage {
		return errors.New("proposal: shortcut endpoints must differ")
	}
	return nil
}

// RecommendationChange carries a ranked list of content recommendations.
type RecommendationChange struct {
	Topics []string `json:"topics"`
	Limit  int      `json:"limit"`
}

func (c *RecommendationChange) Kind() Type { return TypeSageRecommendation }

func (c *RecommendationChange) Validate() error {
	if len(c.Topics) == 0 {
		return errors.New("proposal: recommendation requires at least one topic")
	}
	if c.Limit <= 0 {
		return errors.New("proposal: recommendation limit must be positive")
	}
	return nil
}

// FilterChange suggests a default filter on a frequently visited page.
type FilterChange struct {
	Page   string `json:"page"`
	Filter string `json:"filter"`
}

func (c *FilterChange) Kind() Type { return TypeWorkflowAutomation }

func (c *FilterChange) Validate() error {
	if c.Page == "" || c.Filter == "" {
		return errors.New("proposal: filter requires page and filter")
	}
	return nil
}

// AvoidanceChange suggests guarding a component that repeatedly frustrates
// the user (inline hints, confirmation steps, alternative flows).
type AvoidanceChange struct {
	Component string `json:"component"`
	Page      string `json:"page"`
	Hint      string `json:"hint"`
}

func (c *AvoidanceChange) Kind() Type { return TypeFeatureToggle }

func (c *AvoidanceChange) Validate() error {
	if c.Component == "" || c.Page == "" {
		return errors.New("proposal: avoidance requires component and page")
	}
	return nil
}

// ThemeChange proposes a theme variant matched to mood preference.
type ThemeChange struct {
	Variant string `json:"variant"`
}

func (c *ThemeChange) Kind() Type { return TypeThemeVariant }

func (c *ThemeChange) Validate() error {
	if c.Variant == "" {
		return errors.New("proposal: theme requires a variant")
	}
	return nil
}

// FixChange describes a self-healing remediation. The descriptor is
// consumed by the affected component's own tooling; the pipeline only
// gates it.
type FixChange struct {
	IssueType string `json:"issue_type"`
	Component string `json:"component"`
	Action    string `json:"action"`
	AutoApply bool   `json:"auto_apply"`
}

func (c *FixChange) Kind() Type { return TypeSelfHealingFix }

func (c *FixChange) Validate() error {
	if c.IssueType == "" || c.Component == "" || c.Action == "" {
		return errors.New("proposal: fix requires issue_type, component and action")
	}
	return nil
}

// changeEnvelope is the wire/storage form of a Change.
type changeEnvelope struct {
	Kind    Type            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeChange serializes a change variant with its kind tag.
func EncodeChange(c Change) ([]byte, error) {
	if c == nil {
		return nil, ErrNilChange
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("proposal: encode change: %w", err)
	}
	return json.Marshal(changeEnvelope{Kind: c.Kind(), Payload: payload})
}

// DecodeChange reconstructs the typed variant from its envelope form.
func DecodeChange(data []byte) (Change, error) {
	var env changeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("proposal: decode change envelope: %w", err)
	}
	var c Change
	switch env.Kind {
	case TypeUXChange:
		c = &ShortcutChange{}
	case TypeSageRecommendation:
		c = &RecommendationChange{}
	case TypeWorkflowAutomation:
		c = &FilterChange{}
	case TypeFeatureToggle:
		c = &AvoidanceChange{}
	case TypeThemeVariant:
		c = &ThemeChange{}
	case TypeSelfHealingFix:
		c = &FixChange{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Kind)
	}
	if err := json.Unmarshal(env.Payload, c); err != nil {
		return nil, fmt.Errorf("proposal: decode %s payload: %w", env.Kind, err)
	}
	return c, nil
}

// ValidateChange checks that the proposal's payload variant exists,
// matches the proposal type, and passes its own validation.
func (p *Proposal) ValidateChange() error {
	if p.Change == nil {
		return ErrNilChange
	}
	if p.Change.Kind() != p.Type {
		return fmt.Errorf("%w: payload %s on proposal %s", ErrChangeMismatch, p.Change.Kind(), p.Type)
	}
	return p.Change.Validate()
}
