package governance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the on-disk shape of operator-configurable policies.
type PolicyFile struct {
	Policies []PolicySpec `yaml:"policies"`
}

// PolicySpec is one CEL policy: id, human-readable description surfaced
// in violation reports, and the expression itself.
type PolicySpec struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Expr        string `yaml:"expr"`
}

// LoadPolicyFile reads a YAML policy file and compiles every policy into
// the engine. A single bad policy fails the whole load; a partially
// loaded rule table is worse than none.
func LoadPolicyFile(engine *Engine, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("governance: read policy file: %w", err)
	}
	var file PolicyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("governance: parse policy file %s: %w", path, err)
	}
	for _, spec := range file.Policies {
		if spec.ID == "" || spec.Expr == "" {
			return 0, fmt.Errorf("governance: policy file %s: every policy needs id and expr", path)
		}
		if err := engine.LoadPolicy(spec.ID, spec.Description, spec.Expr); err != nil {
			return 0, err
		}
	}
	return len(file.Policies), nil
}
