package routing

import (
	"sort"
	"strings"
)

// RouteRule maps a path pattern to an upstream target. Exactly one of
// ServiceName and FixedURL is set: a service name is resolved through the
// registry, a fixed URL bypasses it.
type RouteRule struct {
	PathPattern string
	ServiceName string
	FixedURL    string
	Priority    int
	Description string
}

// Table is an immutable route table. Rules are sorted once by descending
// priority; rules sharing a priority keep their declaration order, so the
// first-declared rule wins ties deterministically.
type Table struct {
	rules []RouteRule
}

// NewTable builds a Table from rules in declaration order.
func NewTable(rules []RouteRule) *Table {
	sorted := make([]RouteRule, len(rules))
	copy(sorted, rules)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	return &Table{rules: sorted}
}

// Match returns the highest-priority rule whose pattern matches path, or nil
// when no rule matches. path may carry a query string.
func (t *Table) Match(path string) *RouteRule {
	for i := range t.rules {
		if matches(path, t.rules[i].PathPattern) {
			rule := t.rules[i]
			return &rule
		}
	}

	return nil
}

// Rules returns a copy of the rules in match order.
func (t *Table) Rules() []RouteRule {
	out := make([]RouteRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Patterns returns every configured path pattern in match order, for
// diagnostics when no rule matches a request.
func (t *Table) Patterns() []string {
	patterns := make([]string, len(t.rules))
	for i, rule := range t.rules {
		patterns[i] = rule.PathPattern
	}

	return patterns
}

// matches implements the match policy, strongest form first:
// exact equality; a pattern ending in "/" is a plain prefix; any other
// non-root pattern matches a path continuing into a sub-path or query;
// the root pattern is a catch-all.
func matches(path, pattern string) bool {
	if path == pattern {
		return true
	}

	if strings.HasSuffix(pattern, "/") && pattern != "/" {
		return strings.HasPrefix(path, pattern)
	}

	if pattern != "/" {
		return strings.HasPrefix(path, pattern+"/") || strings.HasPrefix(path, pattern+"?")
	}

	return true
}
