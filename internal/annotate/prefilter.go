package annotate

import (
	ac "github.com/petar-dambovaliev/aho-corasick"
)

// prefilter rejects texts that contain none of the codes anywhere, ignoring token
// boundaries, before the regexp scan runs. It can only rule texts out.
type prefilter struct {
	automaton ac.AhoCorasick
}

// newPrefilter returns nil when any code contains non-ASCII characters, because the
// automaton only folds ASCII case.
func newPrefilter(codes []string) *prefilter {
	for _, code := range codes {
		for i := 0; i < len(code); i++ {
			if code[i] >= 0x80 {
				return nil
			}
		}
	}

	builder := ac.NewAhoCorasickBuilder(ac.Opts{
		AsciiCaseInsensitive: true,
		MatchKind:            ac.LeftMostFirstMatch,
	})
	return &prefilter{automaton: builder.Build(codes)}
}

// mayMatch reports whether text contains at least one code. A nil prefilter lets
// every text through.
func (p *prefilter) mayMatch(text string) bool {
	if p == nil {
		return true
	}
	return len(p.automaton.FindAll(text)) > 0
}
