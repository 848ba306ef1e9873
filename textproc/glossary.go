package textproc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Rule is one exact-string substitution.
type Rule struct {
	From string
	To   string
}

// Glossary applies domain-term substitutions in rule order, so earlier rules
// may feed later ones. Typical use is pinning product names and jargon the
// engine tends to misread.
type Glossary struct {
	rules []Rule
}

// NewGlossary builds a glossary from ordered rules. Rules with an empty From
// are dropped.
func NewGlossary(rules []Rule) *Glossary {
	kept := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.From == "" {
			continue
		}
		kept = append(kept, r)
	}
	return &Glossary{rules: kept}
}

func (g *Glossary) Name() string { return "glossary" }

func (g *Glossary) Apply(_ context.Context, text string) (string, error) {
	for _, r := range g.rules {
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return text, nil
}

// Len reports how many rules the glossary carries.
func (g *Glossary) Len() int { return len(g.rules) }

// ParseGlossary reads "from=to" lines. Blank lines and lines starting with #
// are skipped. The first = splits, so replacement text may contain =.
func ParseGlossary(r io.Reader) ([]Rule, error) {
	var rules []Rule
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		from, to, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(from) == "" {
			return nil, fmt.Errorf("glossary line %d: want from=to, got %q", line, raw)
		}
		rules = append(rules, Rule{From: strings.TrimSpace(from), To: strings.TrimSpace(to)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read glossary: %w", err)
	}
	return rules, nil
}
