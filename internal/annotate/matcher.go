// Package annotate finds additive codes inside ingredient text and splits the text
// into plain and classified segments.
//
// Matching is literal, ASCII case-insensitive and whole-token: a code only matches
// where the characters on both sides of it are non-word characters or the edges of
// the text. All code alternatives are compiled into a single pattern, so a text is
// scanned once no matter how many codes are searched for.
package annotate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Match is a half-open byte range [Start, End) into the scanned text
type Match struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Text returns the matched substring of s
func (m Match) Text(s string) string { return s[m.Start:m.End] }

// Matcher searches texts for a fixed set of codes. It is immutable and safe for
// concurrent use.
type Matcher struct {
	codes  []string
	re     *regexp.Regexp
	filter *prefilter
}

// Compile builds a Matcher for codes. Empty codes are dropped and duplicates
// (ignoring case) keep their first position. When two codes can match at the same
// position, the one listed first wins.
func Compile(codes []string) *Matcher {
	m := &Matcher{codes: uniqueCodes(codes)}
	if len(m.codes) == 0 {
		return m
	}

	alts := make([]string, len(m.codes))
	for i, code := range m.codes {
		alts[i] = codePattern(code)
	}
	// Every alternative is built from quoted literals, so the pattern always compiles.
	m.re = regexp.MustCompile(strings.Join(alts, "|"))
	m.filter = newPrefilter(m.codes)
	return m
}

// Codes returns the codes the matcher searches for
func (m *Matcher) Codes() []string {
	return append([]string(nil), m.codes...)
}

// Find returns the non-overlapping matches in text, left to right
func (m *Matcher) Find(text string) []Match {
	if m == nil || m.re == nil || text == "" {
		return nil
	}
	if !m.filter.mayMatch(text) {
		return nil
	}

	locs := m.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		out = append(out, Match{Start: loc[0], End: loc[1]})
	}
	return out
}

// Find is a one-shot Compile(codes).Find(text)
func Find(text string, codes []string) []Match {
	if text == "" {
		return nil
	}
	return Compile(codes).Find(text)
}

func uniqueCodes(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			continue
		}
		key := strings.ToLower(code)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, code)
	}
	return out
}

// codePattern turns code into a regexp fragment matching it literally, ASCII
// letters in either case, with a token boundary on each side. The boundary is \b
// when the code starts (or ends) with a word character and \B otherwise; both mean
// "the neighbouring character is not a word character".
func codePattern(code string) string {
	var b strings.Builder
	b.WriteString(edgeAssertion(code[0]))
	for _, r := range code {
		switch {
		case r < utf8.RuneSelf && unicode.IsLetter(r):
			b.WriteByte('[')
			b.WriteRune(unicode.ToUpper(r))
			b.WriteRune(unicode.ToLower(r))
			b.WriteByte(']')
		case r >= utf8.RuneSelf && unicode.ToUpper(r) != unicode.ToLower(r):
			b.WriteString("(?i:")
			b.WriteString(regexp.QuoteMeta(string(r)))
			b.WriteByte(')')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(edgeAssertion(code[len(code)-1]))
	return b.String()
}

func edgeAssertion(c byte) string {
	if isWordByte(c) {
		return `\b`
	}
	return `\B`
}

// isWordByte reports whether c is in [0-9A-Za-z_]
func isWordByte(c byte) bool {
	return c == '_' ||
		('0' <= c && c <= '9') ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z')
}
