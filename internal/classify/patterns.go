// patterns.go — Versioned, swappable pattern tables for the error classifier.
// Tables are YAML data (embedded default, or a file named in config) compiled
// once into regular expressions. Control flow in classifier.go never embeds
// pattern literals, so accuracy is tuned by editing data only.
package classify

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_patterns.yaml
var defaultPatternsYAML []byte

// kindPlaceholder expands to the alternation of a table's error kinds.
const kindPlaceholder = "{kind}"

// ErrInvalidTable is wrapped by every table parsing or compile failure.
var ErrInvalidTable = errors.New("pattern_table_invalid")

// ============================================
// YAML Schema
// ============================================

// PatternSpec is a single named pattern as written in a table file.
type PatternSpec struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	Regex       string `yaml:"regex"`
}

// MIMERuleSpec maps URL extensions to the media types a response must carry.
type MIMERuleSpec struct {
	ID         string   `yaml:"id"`
	Extensions []string `yaml:"extensions"`
	Expect     []string `yaml:"expect"`
}

// MIMESpec holds the MIME rules and the statuses exempt from checking.
type MIMESpec struct {
	SkipStatuses []int          `yaml:"skip_statuses"`
	Rules        []MIMERuleSpec `yaml:"rules"`
}

// TableSpec is the on-disk form of a pattern table.
type TableSpec struct {
	Version           string        `yaml:"version"`
	IgnoreCase        bool          `yaml:"ignore_case"`
	ErrorKinds        []string      `yaml:"error_kinds"`
	Uncaught          PatternSpec   `yaml:"uncaught"`
	Handling          []PatternSpec `yaml:"handling"`
	Genuine           []PatternSpec `yaml:"genuine"`
	Banners           []PatternSpec `yaml:"banners"`
	BoundarySelectors []string      `yaml:"boundary_selectors"`
	MIME              MIMESpec      `yaml:"mime"`
}

// ============================================
// Compiled Table
// ============================================

// Pattern is a compiled PatternSpec.
type Pattern struct {
	ID          string
	Description string
	re          *regexp.Regexp
}

// Table is an immutable compiled pattern table, safe for concurrent use.
type Table struct {
	Version           string
	Uncaught          *Pattern
	Handling          []Pattern
	Genuine           []Pattern
	Banners           []Pattern
	BoundarySelectors []string
	MIME              *MIMEPolicy

	spec TableSpec
}

// Spec returns the source spec the table was compiled from.
func (t *Table) Spec() TableSpec {
	return t.spec
}

// DefaultTable compiles the embedded default table.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultPatternsYAML)
}

// MustDefaultTable is DefaultTable for package-level initialization and tests.
func MustDefaultTable() *Table {
	t, err := DefaultTable()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTable reads and compiles a table file. An empty path yields the
// embedded default.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pattern_table_read: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes YAML and compiles it.
func ParseTable(data []byte) (*Table, error) {
	var spec TableSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidTable, err)
	}
	return Compile(spec)
}

// Compile validates spec and compiles every pattern.
func Compile(spec TableSpec) (*Table, error) {
	if spec.Version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidTable)
	}
	if len(spec.Handling) == 0 || len(spec.Genuine) == 0 {
		return nil, fmt.Errorf("%w: handling and genuine groups must both be non-empty", ErrInvalidTable)
	}

	kinds := kindAlternation(spec.ErrorKinds)
	compile := func(group string, ps []PatternSpec) ([]Pattern, error) {
		out := make([]Pattern, 0, len(ps))
		seen := make(map[string]bool, len(ps))
		for _, p := range ps {
			cp, err := compilePattern(group, p, kinds, spec.IgnoreCase)
			if err != nil {
				return nil, err
			}
			if seen[p.ID] {
				return nil, fmt.Errorf("%w: duplicate %s pattern id %q", ErrInvalidTable, group, p.ID)
			}
			seen[p.ID] = true
			out = append(out, cp)
		}
		return out, nil
	}

	t := &Table{Version: spec.Version, spec: spec}
	var err error
	if t.Handling, err = compile("handling", spec.Handling); err != nil {
		return nil, err
	}
	if t.Genuine, err = compile("genuine", spec.Genuine); err != nil {
		return nil, err
	}
	if t.Banners, err = compile("banner", spec.Banners); err != nil {
		return nil, err
	}
	if spec.Uncaught.Regex != "" {
		p, err := compilePattern("uncaught", spec.Uncaught, kinds, spec.IgnoreCase)
		if err != nil {
			return nil, err
		}
		t.Uncaught = &p
	}
	t.BoundarySelectors = append([]string(nil), spec.BoundarySelectors...)
	t.MIME = newMIMEPolicy(spec.MIME)
	return t, nil
}

func compilePattern(group string, p PatternSpec, kinds string, ignoreCase bool) (Pattern, error) {
	if p.ID == "" {
		return Pattern{}, fmt.Errorf("%w: %s pattern without id", ErrInvalidTable, group)
	}
	if p.Regex == "" {
		return Pattern{}, fmt.Errorf("%w: %s pattern %q has empty regex", ErrInvalidTable, group, p.ID)
	}
	expr := p.Regex
	if strings.Contains(expr, kindPlaceholder) {
		if kinds == "" {
			return Pattern{}, fmt.Errorf("%w: %s pattern %q uses %s but error_kinds is empty", ErrInvalidTable, group, p.ID, kindPlaceholder)
		}
		expr = strings.ReplaceAll(expr, kindPlaceholder, kinds)
	}
	flags := "(?m)"
	if ignoreCase {
		flags = "(?mi)"
	}
	re, err := regexp.Compile(flags + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %s pattern %q: %v", ErrInvalidTable, group, p.ID, err)
	}
	return Pattern{ID: p.ID, Description: p.Description, re: re}, nil
}

// kindAlternation builds (?:A|B|...) with every kind quoted literally.
func kindAlternation(kinds []string) string {
	quoted := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if k = strings.TrimSpace(k); k != "" {
			quoted = append(quoted, regexp.QuoteMeta(k))
		}
	}
	if len(quoted) == 0 {
		return ""
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

// MarshalYAML renders the table back to its on-disk form.
func (t *Table) MarshalYAML() (interface{}, error) {
	return t.spec, nil
}
