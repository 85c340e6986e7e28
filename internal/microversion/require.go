package microversion

import (
	"fmt"
	"strings"
)

type op int

const (
	opLt op = iota
	opLe
	opEq
	opNe
	opGe
	opGt
)

// Requirement is one predicate over the active version plus the reason
// reported when it does not hold. Bounds are validated lazily, when the
// requirement is evaluated.
type Requirement struct {
	op     op
	bound  string
	reason string
}

// Lt requires a version strictly below bound.
func Lt(bound string) Requirement {
	return Requirement{op: opLt, bound: bound, reason: "requires version less than " + bound}
}

// Le requires a version at or below bound.
func Le(bound string) Requirement {
	return Requirement{op: opLe, bound: bound, reason: "requires at most version " + bound}
}

// Eq requires exactly bound.
func Eq(bound string) Requirement {
	return Requirement{op: opEq, bound: bound, reason: "requires version " + bound}
}

// Ne requires any version except bound.
func Ne(bound string) Requirement {
	return Requirement{op: opNe, bound: bound, reason: "can not use version " + bound}
}

// Ge requires a version at or above bound.
func Ge(bound string) Requirement {
	return Requirement{op: opGe, bound: bound, reason: "requires at least version " + bound}
}

// Gt requires a version strictly above bound.
func Gt(bound string) Requirement {
	return Requirement{op: opGt, bound: bound, reason: "requires version greater than " + bound}
}

func (r Requirement) holds(current Revision) (bool, error) {
	b, err := Parse(r.bound)
	if err != nil {
		return false, err
	}
	c := current.Compare(b)
	switch r.op {
	case opLt:
		return c < 0, nil
	case opLe:
		return c <= 0, nil
	case opEq:
		return c == 0, nil
	case opNe:
		return c != 0, nil
	case opGe:
		return c >= 0, nil
	default:
		return c > 0, nil
	}
}

// UnsupportedError reports the requirements the active version failed.
type UnsupportedError struct {
	Version string
	Reasons []string
	Any     bool
}

func (e UnsupportedError) Error() string {
	sep := ", and "
	if e.Any {
		sep = ", or "
	}
	return fmt.Sprintf("Operation or argument is not supported with version %s; %s",
		e.Version, strings.Join(e.Reasons, sep))
}

// Check errors with UnsupportedError unless current satisfies every
// requirement, or with InvalidError when a version string is malformed.
func Check(current string, reqs ...Requirement) error {
	return evaluate(current, false, reqs)
}

// CheckAny errors unless current satisfies at least one requirement.
func CheckAny(current string, reqs ...Requirement) error {
	return evaluate(current, true, reqs)
}

// Satisfies reports whether current meets every requirement. Unsatisfied
// requirements are not an error; malformed version strings are.
func Satisfies(current string, reqs ...Requirement) (bool, error) {
	return satisfied(evaluate(current, false, reqs))
}

// SatisfiesAny reports whether current meets at least one requirement.
func SatisfiesAny(current string, reqs ...Requirement) (bool, error) {
	return satisfied(evaluate(current, true, reqs))
}

func evaluate(current string, anyMode bool, reqs []Requirement) error {
	cur, err := Parse(current)
	if err != nil {
		return err
	}
	var unmet []string
	met := 0
	for _, req := range reqs {
		ok, err := req.holds(cur)
		if err != nil {
			return err
		}
		if ok {
			met++
			continue
		}
		unmet = append(unmet, req.reason)
	}
	ok := len(unmet) == 0
	if anyMode {
		ok = met > 0
	}
	if ok {
		return nil
	}
	return UnsupportedError{Version: current, Reasons: unmet, Any: anyMode}
}

func satisfied(err error) (bool, error) {
	switch err.(type) {
	case nil:
		return true, nil
	case UnsupportedError:
		return false, nil
	default:
		return false, err
	}
}
