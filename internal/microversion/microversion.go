// Package microversion parses, orders and gates "major.minor" API
// microversion strings.
package microversion

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Revision is one microversion, ordered numerically by major then minor
// ("1.9" sorts before "1.10").
type Revision struct {
	Major int
	Minor int
}

// InvalidError reports a string that is not a "major.minor" pair of
// non-negative integers.
type InvalidError struct {
	Value string
}

func (e InvalidError) Error() string {
	return fmt.Sprintf("invalid version %q, expected \"major.minor\"", e.Value)
}

// Parse converts "major.minor" into a Revision. Anything else, including a
// bare major, extra components or signed numbers, is an InvalidError.
func Parse(s string) (Revision, error) {
	major, minor, found := strings.Cut(s, ".")
	if !found {
		return Revision{}, InvalidError{Value: s}
	}
	maj, ok := parseComponent(major)
	if !ok {
		return Revision{}, InvalidError{Value: s}
	}
	min, ok := parseComponent(minor)
	if !ok {
		return Revision{}, InvalidError{Value: s}
	}
	return Revision{Major: maj, Minor: min}, nil
}

func parseComponent(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (r Revision) String() string {
	return fmt.Sprintf("%d.%d", r.Major, r.Minor)
}

// Compare returns -1, 0 or 1 ordering r against other.
func (r Revision) Compare(other Revision) int {
	if c := cmp.Compare(r.Major, other.Major); c != 0 {
		return c
	}
	return cmp.Compare(r.Minor, other.Minor)
}
