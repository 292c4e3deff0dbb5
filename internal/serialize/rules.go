package serialize

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules maps object names to semantic categories. Rules are ordered: the
// first keyword hit wins, there is no scoring.
type Rules struct {
	Categories []CategoryRule `yaml:"categories"`
	Containers []string       `yaml:"containers"`
}

// CategoryRule names one category and the substrings that select it.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

var defaultRules = mustParseRules(defaultRulesYAML)

// DefaultRules returns the built-in keyword list.
func DefaultRules() *Rules { return defaultRules }

// LoadRules reads a user rules file, falling back to the defaults when the
// path is empty or the file does not exist.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultRules(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(r.Categories) == 0 {
		return nil, fmt.Errorf("rules file %s defines no categories", path)
	}
	if len(r.Containers) == 0 {
		r.Containers = defaultRules.Containers
	}
	return &r, nil
}

// Categorize infers the semantic category of an object from its name, case
// insensitively. Without a keyword hit, grouping kinds become "container" and
// everything else falls back to the lower-cased kind tag.
func (r *Rules) Categorize(name, kind string) string {
	lower := strings.ToLower(name)
	for _, rule := range r.Categories {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Name
			}
		}
	}
	for _, ck := range r.Containers {
		if strings.EqualFold(kind, ck) {
			return "container"
		}
	}
	return strings.ToLower(kind)
}

func mustParseRules(data []byte) *Rules {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		panic(fmt.Sprintf("embedded rules.yaml invalid: %v", err))
	}
	return &r
}
