package engine

import (
	"strings"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/mapping"
)

// Policy holds the scoring constants.
type Policy struct {
	SelectorScore float64
	KeywordScore  float64
	TypeBonus     float64
	// Threshold is exclusive: a match must score strictly above it.
	Threshold float64
}

// DefaultPolicy is the scoring policy the mapping table is tuned for.
var DefaultPolicy = Policy{
	SelectorScore: 0.9,
	KeywordScore:  0.7,
	TypeBonus:     0.1,
	Threshold:     0.3,
}

// Score computes the confidence that el corresponds to rule. searchText is
// the lower-cased search text of el, computed once per element by the caller.
func (p Policy) Score(el *dom.Element, rule *mapping.Rule, searchText string) float64 {
	var confidence float64

	if rule.MatchesSelector(el.Node) {
		confidence = p.SelectorScore
	}

	if rule.Fuzzy() {
		for _, kw := range rule.Keywords() {
			if strings.Contains(searchText, kw) {
				confidence = max(confidence, p.KeywordScore)
				break
			}
		}
	}

	if hintMatches(rule.Mapping.Type, el) {
		confidence += p.TypeBonus
	}

	return min(confidence, 1.0)
}

// Accepts reports whether a score clears the threshold.
func (p Policy) Accepts(score float64) bool {
	return score > p.Threshold
}

func hintMatches(hint domain.ControlHint, el *dom.Element) bool {
	switch hint {
	case domain.HintSelect:
		return el.Kind == dom.KindSelect
	case domain.HintTextarea:
		return el.Kind == dom.KindTextarea
	case domain.HintURL:
		return el.Kind == dom.KindURL
	case domain.HintDate:
		return el.Kind == dom.KindDate
	default:
		return false
	}
}

// Match is the winning rule for one element.
type Match struct {
	Rule       *mapping.Rule
	Confidence float64
}

// bestMatch scans every rule in declaration order and keeps the first strictly
// highest score. ok is false when nothing clears the threshold.
func (p Policy) bestMatch(el *dom.Element, rules []*mapping.Rule) (Match, bool) {
	searchText := strings.ToLower(el.SearchText())

	var best Match
	for _, rule := range rules {
		if score := p.Score(el, rule, searchText); score > best.Confidence {
			best = Match{Rule: rule, Confidence: score}
		}
	}
	if best.Rule == nil || !p.Accepts(best.Confidence) {
		return Match{}, false
	}
	return best, true
}
