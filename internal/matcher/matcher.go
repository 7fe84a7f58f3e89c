// Package matcher handles ordered keyword rule matching for memarchive.
package matcher

import (
	"strings"
)

// Rule maps a category to the keywords that select it.
type Rule struct {
	Category string
	Keywords []string
}

// MatchResult represents the result of matching text against keyword rules.
type MatchResult struct {
	Matched bool
	Rule    *Rule
	Keyword string
}

// First evaluates text against rules in order using case-insensitive substring
// matching. The first rule with any matching keyword wins; table order is
// significant and rules are never re-sorted.
func First(text string, rules []Rule) *MatchResult {
	if len(rules) == 0 || text == "" {
		return &MatchResult{Matched: false}
	}

	textLower := strings.ToLower(text)

	for i := range rules {
		rule := &rules[i]
		for _, keyword := range rule.Keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(textLower, strings.ToLower(keyword)) {
				return &MatchResult{
					Matched: true,
					Rule:    rule,
					Keyword: keyword,
				}
			}
		}
	}

	return &MatchResult{Matched: false}
}

// Category is a convenience wrapper returning the matched category, or ""
// when no rule matches.
func Category(text string, rules []Rule) string {
	if r := First(text, rules); r.Matched {
		return r.Rule.Category
	}
	return ""
}
