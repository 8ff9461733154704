// Package vers implements Cargo-style semantic version requirements.
//
// A requirement remembers exactly how the user wrote it: which comparison
// operator, and how many of major/minor/patch were given. Rewriting a
// requirement against a newer version keeps both, so "1.2" upgraded to
// 1.5.3 becomes "1.5", never "1.5.3".
package vers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidRequirement indicates a requirement string that cannot be parsed.
var ErrInvalidRequirement = errors.New("invalid version requirement")

// Op is the comparison operator of a single comparator.
type Op int

const (
	// OpCaret is the default compatible-range operator, written "^1.2" or
	// implicitly as "1.2".
	OpCaret Op = iota
	OpTilde
	OpExact
	OpGreater
	OpGreaterEq
	OpLess
	OpLessEq
	// OpWildcard is a partial wildcard such as "1.*".
	OpWildcard
)

// Precision records how many version components were written.
type Precision int

const (
	PrecisionMajor Precision = iota
	PrecisionMinor
	PrecisionPatch
)

// Comparator is one comparator of a requirement, e.g. ">=1.2" in ">=1.2, <2".
type Comparator struct {
	Op       Op
	Explicit bool // operator spelled out (distinguishes "^1" from "1")
	Major    uint64
	Minor    int64 // -1 when not written
	Patch    int64 // -1 when not written
	Pre      string
}

// Precision returns how many components the comparator was written with.
func (c Comparator) Precision() Precision {
	switch {
	case c.Minor < 0:
		return PrecisionMajor
	case c.Patch < 0:
		return PrecisionMinor
	default:
		return PrecisionPatch
	}
}

// Req is a parsed version requirement: the conjunction of its comparators.
// An empty comparator list is the full wildcard "*".
type Req struct {
	raw   string
	comps []Comparator
}

// MustParseReq parses a requirement and panics on error. For fixed inputs.
func MustParseReq(s string) *Req {
	r, err := ParseReq(s)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseReq parses a Cargo version requirement such as "1", "^1.2",
// "~0.9.3", "=1.2.3", ">=1.2, <1.5", or "1.*".
func ParseReq(s string) (*Req, error) {
	r := &Req{raw: s}
	trimmed := strings.TrimSpace(s)
	if trimmed == "*" || trimmed == "x" || trimmed == "X" {
		return r, nil
	}
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("%w %q: empty comparator", ErrInvalidRequirement, s)
		}
		c, err := parseComparator(part)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidRequirement, s, err)
		}
		r.comps = append(r.comps, c)
	}
	return r, nil
}

func parseComparator(s string) (Comparator, error) {
	var c Comparator
	explicitOp := false
	switch {
	case strings.HasPrefix(s, ">="):
		c.Op, explicitOp = OpGreaterEq, true
		s = s[2:]
	case strings.HasPrefix(s, "<="):
		c.Op, explicitOp = OpLessEq, true
		s = s[2:]
	case strings.HasPrefix(s, ">"):
		c.Op, explicitOp = OpGreater, true
		s = s[1:]
	case strings.HasPrefix(s, "<"):
		c.Op, explicitOp = OpLess, true
		s = s[1:]
	case strings.HasPrefix(s, "="):
		c.Op, explicitOp = OpExact, true
		s = s[1:]
	case strings.HasPrefix(s, "^"):
		c.Op, c.Explicit, explicitOp = OpCaret, true, true
		s = s[1:]
	case strings.HasPrefix(s, "~"):
		c.Op, explicitOp = OpTilde, true
		s = s[1:]
	}
	s = strings.TrimSpace(s)

	// Strip build metadata; it carries no ordering semantics.
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	core := s
	if i := strings.IndexByte(s, '-'); i >= 0 {
		core, c.Pre = s[:i], s[i+1:]
	}
	if core == "" {
		return c, errors.New("missing version")
	}

	parts := strings.Split(core, ".")
	if len(parts) > 3 {
		return c, errors.New("too many version components")
	}
	c.Minor, c.Patch = -1, -1
	for i, p := range parts {
		if isWildcardSegment(p) {
			if i == 0 {
				return c, errors.New("wildcard major version must stand alone")
			}
			if explicitOp && c.Op != OpCaret {
				return c, errors.New("wildcard not allowed with an operator")
			}
			c.Op = OpWildcard
			if i == 1 && len(parts) > 2 {
				return c, errors.New("component after wildcard")
			}
			break
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return c, fmt.Errorf("invalid version component %q", p)
		}
		switch i {
		case 0:
			c.Major = n
		case 1:
			c.Minor = int64(n)
		case 2:
			c.Patch = int64(n)
		}
	}
	return c, nil
}

func isWildcardSegment(s string) bool {
	return s == "*" || s == "x" || s == "X"
}

// String returns the requirement exactly as it was written.
func (r *Req) String() string { return r.raw }

// Comparators returns the parsed comparators; empty for "*".
func (r *Req) Comparators() []Comparator { return r.comps }

// Pinned reports whether the requirement pins an upper bound the way an
// exact, less-than, or partial-wildcard comparator does. The bare "*" is not
// pinned.
func (r *Req) Pinned() bool {
	for _, c := range r.comps {
		switch c.Op {
		case OpExact, OpLess, OpLessEq, OpWildcard:
			return true
		}
	}
	return false
}

// HasPrerelease reports whether any comparator names a prerelease.
func (r *Req) HasPrerelease() bool {
	for _, c := range r.comps {
		if c.Pre != "" {
			return true
		}
	}
	return false
}

// Matches reports whether v satisfies the requirement under Cargo's rules:
// all comparators must hold, and a prerelease version only matches when some
// comparator names a prerelease of the same major.minor.patch triple.
func (r *Req) Matches(v *semver.Version) bool {
	if v.Prerelease() != "" && !r.allowsPrereleaseOf(v) {
		return false
	}
	for _, c := range r.comps {
		if !c.matches(v) {
			return false
		}
	}
	return true
}

func (r *Req) allowsPrereleaseOf(v *semver.Version) bool {
	for _, c := range r.comps {
		if c.Pre != "" && c.Major == v.Major() &&
			c.Minor == int64(v.Minor()) && c.Patch == int64(v.Patch()) {
			return true
		}
	}
	return false
}

func (c Comparator) matches(v *semver.Version) bool {
	lower := c.lowerVersion()
	switch c.Op {
	case OpExact:
		if c.Precision() == PrecisionPatch {
			return v.Compare(lower) == 0
		}
		return v.Compare(lower) >= 0 && v.LessThan(c.upperVersion())
	case OpGreater:
		if c.Precision() == PrecisionPatch {
			return v.GreaterThan(lower)
		}
		return v.Compare(c.upperVersion()) >= 0
	case OpGreaterEq:
		return v.Compare(lower) >= 0
	case OpLess:
		return v.LessThan(lower)
	case OpLessEq:
		if c.Precision() == PrecisionPatch {
			return v.Compare(lower) <= 0
		}
		return v.LessThan(c.upperVersion())
	default: // caret, tilde, wildcard
		return v.Compare(lower) >= 0 && v.LessThan(c.upperVersion())
	}
}

// lowerVersion is the smallest concrete version the comparator's written
// components describe.
func (c Comparator) lowerVersion() *semver.Version {
	minor, patch := uint64(0), uint64(0)
	if c.Minor > 0 {
		minor = uint64(c.Minor)
	}
	if c.Patch > 0 {
		patch = uint64(c.Patch)
	}
	return semver.New(c.Major, minor, patch, c.Pre, "")
}

// upperVersion is the exclusive upper bound implied by the operator and the
// written precision.
func (c Comparator) upperVersion() *semver.Version {
	switch c.Op {
	case OpTilde:
		if c.Minor >= 0 {
			return semver.New(c.Major, uint64(c.Minor)+1, 0, "0", "")
		}
		return semver.New(c.Major+1, 0, 0, "0", "")
	case OpCaret:
		// The leftmost nonzero written component locks the range.
		switch {
		case c.Major > 0:
			return semver.New(c.Major+1, 0, 0, "0", "")
		case c.Minor < 0:
			return semver.New(1, 0, 0, "0", "")
		case c.Minor > 0:
			return semver.New(0, uint64(c.Minor)+1, 0, "0", "")
		case c.Patch < 0:
			return semver.New(0, 1, 0, "0", "")
		case c.Patch > 0:
			return semver.New(0, 0, uint64(c.Patch)+1, "0", "")
		default:
			return semver.New(0, 0, 1, "0", "")
		}
	default: // wildcard, partial exact/ordering bounds
		switch c.Precision() {
		case PrecisionMajor:
			return semver.New(c.Major+1, 0, 0, "0", "")
		default:
			return semver.New(c.Major, uint64(c.Minor)+1, 0, "0", "")
		}
	}
}

// LowerBound returns the smallest version the requirement can accept; the
// zero version for "*".
func (r *Req) LowerBound() *semver.Version {
	low := semver.New(0, 0, 0, "", "")
	for _, c := range r.comps {
		switch c.Op {
		case OpLess, OpLessEq:
			continue
		}
		if l := c.lowerVersion(); l.GreaterThan(low) {
			low = l
		}
	}
	return low
}

// Upgrade rewrites the requirement so it accepts v, keeping each
// comparator's operator and written precision. It reports whether the
// rendered requirement differs from the original.
func (r *Req) Upgrade(v *semver.Version) (string, bool) {
	if len(r.comps) == 0 {
		return r.raw, false
	}
	parts := make([]string, 0, len(r.comps))
	for _, c := range r.comps {
		parts = append(parts, c.rewrite(v))
	}
	rendered := strings.Join(parts, ", ")
	if rendered == strings.TrimSpace(r.raw) {
		return r.raw, false
	}
	return rendered, true
}

func (c Comparator) rewrite(v *semver.Version) string {
	var num string
	prec := c.Precision()
	if v.Prerelease() != "" {
		// A partial requirement cannot name a prerelease.
		prec = PrecisionPatch
	}
	switch prec {
	case PrecisionMajor:
		num = strconv.FormatUint(v.Major(), 10)
		if c.Op == OpWildcard {
			num += ".*"
		}
	case PrecisionMinor:
		num = fmt.Sprintf("%d.%d", v.Major(), v.Minor())
		if c.Op == OpWildcard {
			num += ".*"
		}
	default:
		num = fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
		if v.Prerelease() != "" {
			num += "-" + v.Prerelease()
		}
	}
	return c.opPrefix() + num
}

func (c Comparator) opPrefix() string {
	switch c.Op {
	case OpCaret:
		if c.Explicit {
			return "^"
		}
		return ""
	case OpTilde:
		return "~"
	case OpExact:
		return "="
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	default:
		return ""
	}
}

// Exact renders a full-precision requirement for v with the conventional
// implicit caret operator. Used when a dependency gains its first version
// bound.
func Exact(v *semver.Version) string {
	s := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if v.Prerelease() != "" {
		s += "-" + v.Prerelease()
	}
	return s
}
