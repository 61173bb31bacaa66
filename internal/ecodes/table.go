// Package ecodes holds the reference classification of food additive codes.
//
// A Table is immutable once built. The default table is embedded in the binary and
// parsed once at startup; tables loaded from a file are parsed once as well and
// never refreshed.
package ecodes

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Classification is the severity attached to an additive code
type Classification string

const (
	Haram    Classification = "haram"
	Mushbooh Classification = "mushbooh"
)

//go:embed ecodes.yaml
var defaultTableYAML []byte

var defaultTable = mustParse(defaultTableYAML)

// Default returns the built-in reference table
func Default() *Table { return defaultTable }

// Table maps normalized codes to their classification
type Table struct {
	entries map[string]Classification
}

type rawTable struct {
	Haram    []string `yaml:"haram"`
	Mushbooh []string `yaml:"mushbooh"`
}

// NewTable builds a table from a code -> classification map. Keys are normalized.
func NewTable(entries map[string]Classification) (*Table, error) {
	t := &Table{entries: make(map[string]Classification, len(entries))}
	for code, class := range entries {
		if class != Haram && class != Mushbooh {
			return nil, fmt.Errorf("code %q: unknown classification %q", code, class)
		}
		if err := t.add(code, class); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Parse decodes a YAML table with "haram" and "mushbooh" code lists
func Parse(data []byte) (*Table, error) {
	var rt rawTable
	if err := yaml.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("failed to parse e-code table: %w", err)
	}

	t := &Table{entries: make(map[string]Classification, len(rt.Haram)+len(rt.Mushbooh))}
	for _, code := range rt.Haram {
		if err := t.add(code, Haram); err != nil {
			return nil, err
		}
	}
	for _, code := range rt.Mushbooh {
		if err := t.add(code, Mushbooh); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Load reads a YAML table from path
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read e-code table: %w", err)
	}
	return Parse(data)
}

func mustParse(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) add(code string, class Classification) error {
	key := normalize(code)
	if key == "" {
		return fmt.Errorf("empty code in %s list", class)
	}
	if prev, ok := t.entries[key]; ok && prev != class {
		return fmt.Errorf("code %s listed as both %s and %s", key, prev, class)
	}
	t.entries[key] = class
	return nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Classify returns the classification of code. Codes missing from the table are
// mushbooh. A nil table classifies everything as mushbooh.
func (t *Table) Classify(code string) Classification {
	if t == nil {
		return Mushbooh
	}
	if class, ok := t.entries[normalize(code)]; ok {
		return class
	}
	return Mushbooh
}

// Lookup reports the classification of code and whether the table lists it
func (t *Table) Lookup(code string) (Classification, bool) {
	if t == nil {
		return Mushbooh, false
	}
	class, ok := t.entries[normalize(code)]
	if !ok {
		return Mushbooh, false
	}
	return class, true
}

// Len returns the number of listed codes
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Codes returns the listed codes with the given classification, sorted. An
// empty class returns every code.
func (t *Table) Codes(class Classification) []string {
	if t == nil {
		return nil
	}
	var out []string
	for code, c := range t.entries {
		if class == "" || c == class {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// CodeClass pairs a code with its classification
type CodeClass struct {
	Code           string         `json:"code"`
	Classification Classification `json:"classification"`
}

// Summarize classifies every code in order, keeping their casing
func (t *Table) Summarize(codes []string) []CodeClass {
	out := make([]CodeClass, 0, len(codes))
	for _, code := range codes {
		out = append(out, CodeClass{Code: code, Classification: t.Classify(code)})
	}
	return out
}
