package classifier

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction"
)

// ErrInvalidRules is returned when a rule file cannot be used.
var ErrInvalidRules = errors.New("invalid extraction rules")

// Rule selects an extractor when its keywords appear in a document's
// leading text: all of them when MatchAll is set, any of them otherwise.
type Rule struct {
	Keywords  []string
	MatchAll  bool
	Extractor extraction.ID
}

type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Keywords  []string `yaml:"keywords"`
	All       *bool    `yaml:"all"`
	Extractor string   `yaml:"extractor"`
}

// LoadRulesFile reads rules from a YAML (or JSON) file.
func LoadRulesFile(path string, registry *extraction.Registry) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	return LoadRules(f, registry)
}

// LoadRules decodes rules and resolves every extractor name against the
// registry. Keywords are lowercased; "all" defaults to true. Rules without
// keywords can never match and are dropped.
func LoadRules(r io.Reader, registry *extraction.Registry) ([]Rule, error) {
	var file ruleFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		id, err := registry.Resolve(entry.Extractor)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d: %w", ErrInvalidRules, i+1, err)
		}

		keywords := make([]string, 0, len(entry.Keywords))
		for _, k := range entry.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				keywords = append(keywords, k)
			}
		}
		if len(keywords) == 0 {
			continue
		}

		matchAll := true
		if entry.All != nil {
			matchAll = *entry.All
		}
		rules = append(rules, Rule{Keywords: keywords, MatchAll: matchAll, Extractor: id})
	}

	return rules, nil
}
