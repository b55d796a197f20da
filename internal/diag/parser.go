package diag

import (
	"strings"
)

// Parser classifies stderr lines. It is safe for concurrent use.
type Parser struct {
	rules []compiledRule
}

// NewParser compiles p. A nil p selects the default table.
func NewParser(p *Patterns) (*Parser, error) {
	if p == nil {
		p = DefaultPatterns()
	}
	rules, err := p.compile()
	if err != nil {
		return nil, err
	}
	return &Parser{rules: rules}, nil
}

// Parse returns one Diagnostic per recognised line, in line order.
// Unrecognised lines are dropped; parsing never fails.
func (p *Parser) Parse(text string) []Diagnostic {
	if text == "" {
		return nil
	}

	var out []Diagnostic
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if d, ok := p.classify(line); ok {
			out = append(out, d)
		}
	}
	return out
}

func (p *Parser) classify(line string) (Diagnostic, bool) {
	for _, r := range p.rules {
		m := r.re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d := Diagnostic{
			Severity: r.severity,
			Category: r.category,
			Message:  line,
		}
		if r.message > 0 && strings.TrimSpace(m[r.message]) != "" {
			d.Message = strings.TrimSpace(m[r.message])
		}
		if r.font > 0 {
			d.Font = strings.TrimSpace(m[r.font])
		}
		if r.subst > 0 {
			d.Substitute = strings.TrimSpace(m[r.subst])
		}
		return d, true
	}
	return Diagnostic{}, false
}
