// Package match provides the shared matching primitives used by every
// detector strategy: a tagged regular-expression rule table for cheap
// candidate location, and a tree-sitter backed structural confirmer that
// rejects matches found inside comments or string literals.
package match

import (
	"regexp"

	"apiscope/detector/models"
)

// Rule is one tagged entry of the pattern catalog. Language is the
// matcher language id the rule applies to; empty means any language.
type Rule struct {
	ID       string
	Language string
	Protocol models.APIType
	Pattern  *regexp.Regexp
}

// Candidate is a provisional textual match. Candidates only become
// definitions after the structural confirmer accepts them (or the file's
// language has no registered parser).
type Candidate struct {
	Rule   *Rule
	Offset int // byte offset of the match start
	Line   int // 1-based
	Groups map[string]string
}

// RuleSet holds compiled rules in a fixed order so scans over identical
// content always yield candidates in the same sequence.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// Scan runs every rule applicable to the language over the content and
// returns all candidate sites in rule-then-offset order.
func (rs *RuleSet) Scan(language string, content []byte) []Candidate {
	var candidates []Candidate
	lines := newLineIndex(content)

	for i := range rs.rules {
		rule := &rs.rules[i]
		if rule.Language != "" && rule.Language != language {
			continue
		}
		names := rule.Pattern.SubexpNames()
		for _, m := range rule.Pattern.FindAllSubmatchIndex(content, -1) {
			groups := make(map[string]string)
			for gi, name := range names {
				if name == "" || m[2*gi] < 0 {
					continue
				}
				groups[name] = string(content[m[2*gi]:m[2*gi+1]])
			}
			candidates = append(candidates, Candidate{
				Rule:   rule,
				Offset: m[0],
				Line:   lines.lineAt(m[0]),
				Groups: groups,
			})
		}
	}
	return candidates
}

// lineIndex maps byte offsets to 1-based line numbers via the sorted
// offsets of newline characters.
type lineIndex struct {
	newlines []int
}

func newLineIndex(content []byte) lineIndex {
	var idx lineIndex
	for i, b := range content {
		if b == '\n' {
			idx.newlines = append(idx.newlines, i)
		}
	}
	return idx
}

func (idx lineIndex) lineAt(offset int) int {
	lo, hi := 0, len(idx.newlines)
	for lo < hi {
		mid := (lo + hi) / 2
		if idx.newlines[mid] < offset {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo + 1
}
