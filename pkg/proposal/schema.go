package proposal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSON Schemas for each change variant, enforced at the governance
// boundary before a payload is ever persisted or ferried onward.
var changeSchemas = map[Type]string{
	TypeUXChange: `{
		"type": "object",
		"properties": {
			"from_page": {"type": "string", "minLength": 1, "maxLength": 256},
			"to_page":   {"type": "string", "minLength": 1, "maxLength": 256},
			"label":     {"type": "string", "maxLength": 128}
		},
		"required": ["from_page", "to_page"],
		"additionalProperties": false
	}`,
	TypeSageRecommendation: `{
		"type": "object",
		"properties": {
			"topics": {"type": "array", "items": {"type": "string", "maxLength": 128}, "minItems": 1, "maxItems": 10},
			"limit":  {"type": "integer", "minimum": 1, "maximum": 20}
		},
		"required": ["topics", "limit"],
		"additionalProperties": false
	}`,
	TypeWorkflowAutomation: `{
		"type": "object",
		"properties": {
			"page":   {"type": "string", "minLength": 1, "maxLength": 256},
			"filter": {"type": "string", "minLength": 1, "maxLength": 256}
		},
		"required": ["page", "filter"],
		"additionalProperties": false
	}`,
	TypeFeatureToggle: `{
		"type": "object",
		"properties": {
			"component": {"type": "string", "minLength": 1, "maxLength": 256},
			"page":      {"type": "string", "minLength": 1, "maxLength": 256},
			"hint":      {"type": "string", "maxLength": 512}
		},
		"required": ["component", "page"],
		"additionalProperties": false
	}`,
	TypeThemeVariant: `{
		"type": "object",
		"properties": {
			"variant": {"type": "string", "minLength": 1, "maxLength": 64}
		},
		"required": ["variant"],
		"additionalProperties": false
	}`,
	TypeSelfHealingFix: `{
		"type": "object",
		"properties": {
			"issue_type": {"type": "string", "minLength": 1, "maxLength": 64},
			"component":  {"type": "string", "minLength": 1, "maxLength": 256},
			"action":     {"type": "string", "minLength": 1, "maxLength": 512},
			"auto_apply": {"type": "boolean"}
		},
		"required": ["issue_type", "component", "action"],
		"additionalProperties": false
	}`,
}

var (
	compileOnce     sync.Once
	compiledSchemas map[Type]*jsonschema.Schema
	compileErr      error
)

func compiled() (map[Type]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiledSchemas = make(map[Type]*jsonschema.Schema, len(changeSchemas))
		for t, src := range changeSchemas {
			c := jsonschema.NewCompiler()
			c.Draft = jsonschema.Draft2020
			url := fmt.Sprintf("mem://change/%s.json", t)
			if err := c.AddResource(url, strings.NewReader(src)); err != nil {
				compileErr = fmt.Errorf("proposal: add schema %s: %w", t, err)
				return
			}
			s, err := c.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("proposal: compile schema %s: %w", t, err)
				return
			}
			compiledSchemas[t] = s
		}
	})
	return compiledSchemas, compileErr
}

// ValidateChangeSchema checks the change payload against the JSON Schema
// for its variant. This is stricter than Change.Validate: it also rejects
// oversized fields and unknown keys that a hand-built payload could carry.
func ValidateChangeSchema(c Change) error {
	if c == nil {
		return ErrNilChange
	}
	schemas, err := compiled()
	if err != nil {
		return err
	}
	schema, ok := schemas[c.Kind()]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, c.Kind())
	}

	// jsonschema validates generic values, not structs.
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("proposal: marshal change for validation: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("proposal: unmarshal change for validation: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return fmt.Errorf("proposal: change payload invalid: %w", err)
	}
	return nil
}
