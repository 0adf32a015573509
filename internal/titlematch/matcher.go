// Package titlematch links payroll titles to open-job listings. The payroll
// and listings datasets label the same roles differently, so matching is an
// approximate heuristic: a case-insensitive substring hit wins outright,
// otherwise the listing sharing the most long keywords wins.
package titlematch

import (
	"regexp"
	"strings"
)

// Listing is an open-job posting reduced to what matching needs.
type Listing struct {
	ID    string
	Title string
	URL   string
}

// Matcher holds the three pluggable stages of matching. Any nil stage falls
// back to the package default.
type Matcher struct {
	Normalize func(string) string
	Tokenize  func(string) []string
	Score     func(a, b []string) int
}

// Default is the matcher used by the payroll analytics.
var Default = Matcher{Normalize: Normalize, Tokenize: Tokenize, Score: Overlap}

var (
	separators  = strings.NewReplacer("-", " ", "–", " ", "/", " ")
	noiseWords  = regexp.MustCompile(`\b(level|per|session|temporary|temp|provisional|assoc|assistant|l\d+)\b`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Normalize lowercases s, turns separators into spaces and removes noise
// words and punctuation.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = separators.Replace(s)
	s = noiseWords.ReplaceAllString(s, " ")
	s = punctuation.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// MinTokenLen is the length a token must exceed to count as a keyword.
const MinTokenLen = 4

// Tokenize returns the distinct words of a normalized title longer than MinTokenLen.
func Tokenize(normalized string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(normalized) {
		if len(w) <= MinTokenLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Overlap counts the tokens of a that also appear in b.
func Overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	n := 0
	for _, t := range a {
		if _, ok := set[t]; ok {
			n++
		}
	}
	return n
}

func (m Matcher) stages() (func(string) string, func(string) []string, func(a, b []string) int) {
	norm, tok, score := m.Normalize, m.Tokenize, m.Score
	if norm == nil {
		norm = Normalize
	}
	if tok == nil {
		tok = Tokenize
	}
	if score == nil {
		score = Overlap
	}
	return norm, tok, score
}

// Match finds the listing closest to payrollTitle. Listings without a URL are
// never returned. The first listing whose title contains payrollTitle
// (case-insensitive) is returned immediately; otherwise the highest scoring
// listing with a positive score wins, earlier listings winning ties.
func (m Matcher) Match(payrollTitle string, listings []Listing) (Listing, bool) {
	raw := strings.ToLower(strings.TrimSpace(payrollTitle))
	if raw == "" {
		return Listing{}, false
	}
	norm, tok, score := m.stages()
	want := tok(norm(payrollTitle))

	var best Listing
	bestScore := 0
	for _, l := range listings {
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		if strings.Contains(strings.ToLower(l.Title), raw) {
			return l, true
		}
		if len(want) == 0 {
			continue
		}
		if s := score(want, tok(norm(l.Title))); s > bestScore {
			best, bestScore = l, s
		}
	}
	return best, bestScore > 0
}

// Match runs the default matcher.
func Match(payrollTitle string, listings []Listing) (Listing, bool) {
	return Default.Match(payrollTitle, listings)
}
