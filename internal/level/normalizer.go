// Package level corrects the numeric rank the directory reports for an
// employee. Upstream levels are wrong for some well known title classes, so
// an ordered rule table can force a level from the title alone.
package level

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultLevel is used when the upstream level is missing or unusable.
const DefaultLevel = 1

// MatchKind selects how a Rule pattern is compared with a title.
type MatchKind string

const (
	MatchContains MatchKind = "contains"
	MatchExact    MatchKind = "exact"
)

// Rule forces Level for every title matching Pattern.
// Matching is case-insensitive and ignores surrounding whitespace.
type Rule struct {
	Pattern string
	Match   MatchKind
	Level   int
}

func (r Rule) matches(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	p := strings.ToLower(strings.TrimSpace(r.Pattern))
	if r.Match == MatchExact {
		return t == p
	}
	return strings.Contains(t, p)
}

// DefaultRules: department managers are reported with arbitrary levels
// upstream and always sit at 9.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "部门经理", Match: MatchContains, Level: 9},
		{Pattern: "department manager", Match: MatchContains, Level: 9},
	}
}

// Normalizer maps a title and a raw level to the level stored on the replica.
type Normalizer struct {
	rules []Rule
}

// NewNormalizer validates and copies the rule table. First match wins, so
// order is significant.
func NewNormalizer(rules []Rule) (*Normalizer, error) {
	copied := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if strings.TrimSpace(r.Pattern) == "" {
			return nil, fmt.Errorf("rule %d: pattern is required", i)
		}
		if r.Level < DefaultLevel {
			return nil, fmt.Errorf("rule %d (%s): level must be >= %d", i, r.Pattern, DefaultLevel)
		}
		switch r.Match {
		case "":
			r.Match = MatchContains
		case MatchContains, MatchExact:
		default:
			return nil, fmt.Errorf("rule %d (%s): unknown match kind %q", i, r.Pattern, r.Match)
		}
		copied = append(copied, r)
	}
	return &Normalizer{rules: copied}, nil
}

// MustNormalizer panics on an invalid table; meant for package-level defaults.
func MustNormalizer(rules []Rule) *Normalizer {
	n, err := NewNormalizer(rules)
	if err != nil {
		panic(err)
	}
	return n
}

// Default is a Normalizer over DefaultRules.
func Default() *Normalizer {
	return MustNormalizer(DefaultRules())
}

// Normalize returns the corrected level for a title and a numeric raw level.
func (n *Normalizer) Normalize(title string, rawLevel int) int {
	if lvl, ok := n.override(title); ok {
		return lvl
	}
	if rawLevel < DefaultLevel {
		return DefaultLevel
	}
	return rawLevel
}

// NormalizeRaw is Normalize for the textual level the directory delivers.
// Integral numbers in any notation ("13", "13.0", "1.3e1") are accepted;
// blank, fractional or non-numeric input counts as absent.
func (n *Normalizer) NormalizeRaw(title, rawLevel string) int {
	if lvl, ok := n.override(title); ok {
		return lvl
	}
	parsed, ok := ParseLevel(rawLevel)
	if !ok {
		return DefaultLevel
	}
	return n.Normalize(title, parsed)
}

// ParseLevel reads an integral level from its textual form.
func ParseLevel(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}

// Corrected reports whether a rule overrode the raw level for title.
func (n *Normalizer) Corrected(title string) bool {
	_, ok := n.override(title)
	return ok
}

// Rules returns a copy of the rule table in match order.
func (n *Normalizer) Rules() []Rule {
	out := make([]Rule, len(n.rules))
	copy(out, n.rules)
	return out
}

func (n *Normalizer) override(title string) (int, bool) {
	for _, r := range n.rules {
		if r.matches(title) {
			return r.Level, true
		}
	}
	return 0, false
}
