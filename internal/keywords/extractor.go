// Package keywords maps free text (a keyword box or a pasted resume) onto a
// fixed whitelist of normalized keyword tokens.
package keywords

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

var disallowed = regexp.MustCompile(`[^0-9a-zA-Z\-\s]`)

// Set is an unordered collection of keyword tokens.
type Set map[string]struct{}

// Sorted returns the members of s in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether k is in s.
func (s Set) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Extractor matches tokens against a whitelist. The zero value matches nothing.
type Extractor struct {
	whitelist Set
}

// NewExtractor builds an extractor over the given whitelist entries.
// Entries are used verbatim; blank entries are ignored.
func NewExtractor(whitelist []string) *Extractor {
	w := make(Set, len(whitelist))
	for _, k := range whitelist {
		k = strings.TrimSpace(k)
		if k != "" {
			w[k] = struct{}{}
		}
	}
	return &Extractor{whitelist: w}
}

// Len returns the number of whitelist entries.
func (e *Extractor) Len() int { return len(e.whitelist) }

// Extract strips every character outside [0-9a-zA-Z-] and whitespace, splits
// on whitespace and keeps the tokens that exactly match a whitelist entry.
func (e *Extractor) Extract(text string) Set {
	out := make(Set)
	if text == "" || len(e.whitelist) == 0 {
		return out
	}
	for _, tok := range strings.Fields(disallowed.ReplaceAllString(text, "")) {
		if e.whitelist.Has(tok) {
			out[tok] = struct{}{}
		}
	}
	return out
}

// Union merges sets into a new set.
func Union(sets ...Set) Set {
	out := make(Set)
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}

// FromSlice builds a set from trimmed, non-empty values.
func FromSlice(vals []string) Set {
	out := make(Set, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

// ReadWhitelist reads one keyword per line. Blank lines and lines starting
// with '#' are skipped.
func ReadWhitelist(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading keyword whitelist: %w", err)
	}
	return out, nil
}

// LoadWhitelist reads a whitelist file from path.
func LoadWhitelist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keyword whitelist: %w", err)
	}
	defer f.Close()
	return ReadWhitelist(f)
}
