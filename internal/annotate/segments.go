package annotate

import (
	"strings"

	"github.com/franckalain/halalscan/internal/ecodes"
)

// Segment is a span of annotated text. Plain spans carry only Text; code spans
// also carry the classification of the matched code.
type Segment struct {
	Text           string                `json:"text"`
	Code           bool                  `json:"code,omitempty"`
	Classification ecodes.Classification `json:"classification,omitempty"`
}

// BuildSegments splits text around matches. Every match is preceded by the plain
// text since the previous match (possibly empty) and the output always ends with
// one plain segment holding the rest of the text (possibly empty).
//
// Matches must be ordered and non-overlapping, as Find returns them; ranges that
// go backwards, are empty or fall outside text are skipped. Join of the result is
// always equal to text.
func BuildSegments(text string, matches []Match, table *ecodes.Table) []Segment {
	segments := make([]Segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m.Start < last || m.End <= m.Start || m.End > len(text) {
			continue
		}
		code := text[m.Start:m.End]
		segments = append(segments,
			Segment{Text: text[last:m.Start]},
			Segment{Text: code, Code: true, Classification: table.Classify(code)},
		)
		last = m.End
	}
	return append(segments, Segment{Text: text[last:]})
}

// Annotate finds codes in text and segments it in one call
func Annotate(text string, codes []string, table *ecodes.Table) []Segment {
	return BuildSegments(text, Find(text, codes), table)
}

// Annotate segments text using the matcher's codes
func (m *Matcher) Annotate(text string, table *ecodes.Table) []Segment {
	return BuildSegments(text, m.Find(text), table)
}

// Join concatenates the text of segments
func Join(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// CodeSegments returns only the code segments, in order
func CodeSegments(segments []Segment) []Segment {
	var out []Segment
	for _, s := range segments {
		if s.Code {
			out = append(out, s)
		}
	}
	return out
}
