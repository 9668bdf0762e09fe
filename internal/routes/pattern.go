package routes

import (
	"fmt"
	"strings"
)

// PatternKind is the matching tier. Lower tiers are tried first.
type PatternKind int

const (
	// PrefixSuffix captures the single segment between a prefix and a suffix,
	// e.g. /admin/news/{id}/edit.
	PrefixSuffix PatternKind = iota + 1
	// Prefix captures the single segment after a prefix, e.g. /news/{slug}.
	Prefix
	// Exact matches one residual path.
	Exact
)

func (k PatternKind) String() string {
	switch k {
	case PrefixSuffix:
		return "prefix+suffix"
	case Prefix:
		return "prefix"
	case Exact:
		return "exact"
	default:
		return "unknown"
	}
}

// Pattern is a residual-path shape.
type Pattern struct {
	Kind   PatternKind
	Path   string // Exact
	Prefix string // Prefix, PrefixSuffix; ends with "/"
	Suffix string // PrefixSuffix; starts with "/"
	Param  string // name of the captured segment
}

// ExactPath matches path only.
func ExactPath(path string) Pattern {
	return Pattern{Kind: Exact, Path: path}
}

// PrefixCapture matches prefix followed by one captured segment.
func PrefixCapture(prefix, param string) Pattern {
	return Pattern{Kind: Prefix, Prefix: prefix, Param: param}
}

// PrefixSuffixCapture matches prefix, one captured segment, then suffix.
func PrefixSuffixCapture(prefix, param, suffix string) Pattern {
	return Pattern{Kind: PrefixSuffix, Prefix: prefix, Suffix: suffix, Param: param}
}

// Match reports whether residual fits the pattern and returns the captured
// segment verbatim.
func (p Pattern) Match(residual string) (map[string]string, bool) {
	switch p.Kind {
	case Exact:
		return nil, residual == p.Path
	case Prefix:
		rest, ok := strings.CutPrefix(residual, p.Prefix)
		if !ok || !segment(rest) {
			return nil, false
		}
		return map[string]string{p.Param: rest}, true
	case PrefixSuffix:
		rest, ok := strings.CutPrefix(residual, p.Prefix)
		if !ok {
			return nil, false
		}
		value, ok := strings.CutSuffix(rest, p.Suffix)
		if !ok || !segment(value) {
			return nil, false
		}
		return map[string]string{p.Param: value}, true
	default:
		return nil, false
	}
}

func (p Pattern) validate() error {
	switch p.Kind {
	case Exact:
		if !strings.HasPrefix(p.Path, "/") {
			return fmt.Errorf("exact path %q must start with /", p.Path)
		}
	case Prefix, PrefixSuffix:
		if !strings.HasPrefix(p.Prefix, "/") || !strings.HasSuffix(p.Prefix, "/") {
			return fmt.Errorf("prefix %q must start and end with /", p.Prefix)
		}
		if p.Param == "" {
			return fmt.Errorf("pattern %s has no parameter name", p)
		}
		if p.Kind == PrefixSuffix && (!strings.HasPrefix(p.Suffix, "/") || len(p.Suffix) < 2) {
			return fmt.Errorf("suffix %q must start with / and name a segment", p.Suffix)
		}
	default:
		return fmt.Errorf("unknown pattern kind %d", p.Kind)
	}
	return nil
}

func (p Pattern) String() string {
	switch p.Kind {
	case Exact:
		return p.Path
	case Prefix:
		return p.Prefix + "{" + p.Param + "}"
	case PrefixSuffix:
		return p.Prefix + "{" + p.Param + "}" + p.Suffix
	default:
		return "?"
	}
}

func segment(s string) bool {
	return s != "" && !strings.Contains(s, "/")
}
