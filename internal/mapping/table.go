package mapping

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/jobfill/jobfill/internal/domain"
)

// Rule is one loaded FieldMapping with its selectors compiled.
type Rule struct {
	Key     string
	Index   int
	Mapping domain.FieldMapping

	selectors []cascadia.SelectorGroup
	keywords  []string
	issues    []string
}

// MatchesSelector reports whether n satisfies any of the rule's selectors.
// The first satisfying selector short-circuits the rest.
func (r *Rule) MatchesSelector(n *html.Node) bool {
	for _, s := range r.selectors {
		if s.Match(n) {
			return true
		}
	}
	return false
}

// Issues lists the parts of the rule that were dropped while compiling it.
func (r *Rule) Issues() []string { return r.issues }

// Keywords returns the lower-cased keywords.
func (r *Rule) Keywords() []string { return r.keywords }

// Fuzzy reports whether keyword matching is enabled for the rule.
func (r *Rule) Fuzzy() bool { return r.Mapping.FuzzyMatch && len(r.keywords) > 0 }

// Table is an ordered, immutable set of rules. Order is declaration order in
// the mapping document and is significant: it breaks scoring ties.
type Table struct {
	rules []*Rule
	byKey map[string]*Rule
}

// Empty returns a table with no rules.
func Empty() *Table {
	return &Table{byKey: map[string]*Rule{}}
}

// Rules returns the rules in declaration order.
func (t *Table) Rules() []*Rule { return t.rules }

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.rules) }

// Lookup returns the rule for a mapping key.
func (t *Table) Lookup(key string) (*Rule, bool) {
	r, ok := t.byKey[key]
	return r, ok
}

// Mappings returns the loaded field mappings keyed by mapping key.
func (t *Table) Mappings() map[string]domain.FieldMapping {
	out := make(map[string]domain.FieldMapping, len(t.rules))
	for _, r := range t.rules {
		out[r.Key] = r.Mapping
	}
	return out
}

// entry is one undecoded rule as it appears in a mapping document.
type entry struct {
	key    string
	decode func(*domain.FieldMapping) error
}

// build validates and compiles entries. Malformed rules are skipped with a
// warning rather than failing the table.
func build(entries []entry, logger *zap.Logger) *Table {
	t := Empty()
	for _, e := range dedupe(entries, logger) {
		rule, err := compile(e)
		if err != nil {
			logger.Warn("skipping field mapping", zap.String("key", e.key), zap.Error(err))
			continue
		}
		for _, issue := range rule.issues {
			logger.Warn("field mapping degraded", zap.String("key", rule.Key), zap.String("issue", issue))
		}
		rule.Index = len(t.rules)
		t.rules = append(t.rules, rule)
		t.byKey[rule.Key] = rule
	}
	return t
}

// dedupe resolves repeated keys the way a JSON object does: the last
// declaration wins and keeps the position of the first.
func dedupe(entries []entry, logger *zap.Logger) []entry {
	pos := make(map[string]int, len(entries))
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.key]; ok {
			logger.Warn("duplicate field mapping key, keeping last", zap.String("key", e.key))
			out[i] = e
			continue
		}
		pos[e.key] = len(out)
		out = append(out, e)
	}
	return out
}

func compile(e entry) (*Rule, error) {
	var m domain.FieldMapping
	if err := e.decode(&m); err != nil {
		return nil, fmt.Errorf("malformed rule: %w", err)
	}
	if m.ProfileField == "" {
		return nil, fmt.Errorf("profileField is required")
	}
	spec, ok := domain.LookupField(m.ProfileField)
	if !ok {
		return nil, fmt.Errorf("unknown profile field %q", m.ProfileField)
	}

	r := &Rule{Key: e.key, Mapping: m}
	var issues []string

	if !m.Type.Valid() {
		issues = append(issues, fmt.Sprintf("unknown type %q ignored", m.Type))
		r.Mapping.Type = domain.HintNone
	}

	for _, sel := range m.Selectors {
		g, err := cascadia.ParseGroup(sel)
		if err != nil {
			issues = append(issues, fmt.Sprintf("invalid selector %q dropped", sel))
			continue
		}
		r.selectors = append(r.selectors, g)
	}
	r.keywords = r.Mapping.LowerKeywords()

	if spec.Categorical() && len(m.ValueMapping) > 0 {
		vm := make(map[string][]string, len(m.ValueMapping))
		for k, v := range m.ValueMapping {
			if !spec.Allows(k) {
				issues = append(issues, fmt.Sprintf("valueMapping key %q is not a value of %s", k, spec.Name))
				continue
			}
			vm[k] = v
		}
		r.Mapping.ValueMapping = vm
	}

	r.issues = issues
	return r, nil
}
