package diag

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"

	"github.com/alnah/go-docconv/internal/yamlutil"
)

// Sentinel errors for pattern tables.
var (
	ErrInvalidRule     = errors.New("invalid diagnostic rule")
	ErrPatternsParse   = errors.New("failed to parse diagnostic patterns")
	ErrPatternsTooBig  = errors.New("diagnostic patterns file too large")
	ErrNoPatternsRules = errors.New("diagnostic patterns define no rules")
)

// maxPatternsSize caps a patterns file read from disk.
const maxPatternsSize = 256 << 10

//go:embed patterns.yaml
var defaultPatterns []byte

// Rule maps one regular expression to a diagnostic classification.
// Named groups "font", "substitute" and "message" fill the matching fields;
// without a "message" group the whole line is the message.
type Rule struct {
	Name     string `yaml:"name"`
	Pattern  string `yaml:"pattern"`
	Severity string `yaml:"severity"`
	Category string `yaml:"category"`
}

// Patterns is an ordered rule table. The first matching rule wins.
type Patterns struct {
	Rules []Rule `yaml:"rules"`
}

// DefaultPatterns returns the embedded rule table.
func DefaultPatterns() *Patterns {
	p, err := ParsePatterns(defaultPatterns)
	if err != nil {
		panic(fmt.Sprintf("diag: embedded patterns are invalid: %v", err))
	}
	return p
}

// ParsePatterns decodes a YAML rule table, rejecting unknown fields.
func ParsePatterns(data []byte) (*Patterns, error) {
	var p Patterns
	if err := yamlutil.DecodeStrict(data, &p, maxPatternsSize); err != nil {
		if errors.Is(err, yamlutil.ErrInputTooLarge) {
			return nil, fmt.Errorf("%w: %v", ErrPatternsTooBig, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrPatternsParse, err)
	}
	if _, err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPatterns reads a YAML rule table from path.
func LoadPatterns(path string) (*Patterns, error) {
	data, err := yamlutil.ReadFile(path, maxPatternsSize)
	switch {
	case errors.Is(err, yamlutil.ErrInputTooLarge):
		return nil, fmt.Errorf("%w: %v", ErrPatternsTooBig, err)
	case err != nil:
		return nil, fmt.Errorf("reading patterns %q: %w", path, err)
	}
	return ParsePatterns(data)
}

// compiledRule is a Rule ready for matching.
type compiledRule struct {
	name     string
	re       *regexp.Regexp
	severity Severity
	category Category
	font     int
	subst    int
	message  int
}

func (p *Patterns) compile() ([]compiledRule, error) {
	if p == nil || len(p.Rules) == 0 {
		return nil, ErrNoPatternsRules
	}

	rules := make([]compiledRule, 0, len(p.Rules))
	for i, r := range p.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %v", ErrInvalidRule, i, r.Name, err)
		}
		sev, err := ParseSeverity(r.Severity)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		cat, err := ParseCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		rules = append(rules, compiledRule{
			name:     r.Name,
			re:       re,
			severity: sev,
			category: cat,
			font:     re.SubexpIndex("font"),
			subst:    re.SubexpIndex("substitute"),
			message:  re.SubexpIndex("message"),
		})
	}
	return rules, nil
}
