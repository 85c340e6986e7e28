package microversion

import "fmt"

// Supported enumerates every service microversion this client speaks,
// oldest first. Minors missing from the list are reserved by the service
// for features the client does not expose.
var Supported = []string{
	"1.0",
	"1.1",
	"1.2",
	"1.3",
	"1.4",
	"1.5",
	"1.6",
	"1.7",
	"1.8",
	"1.9",
	"1.10",
	"1.11",
	"1.12",
	"1.13",
	"1.14",
	"1.15",
	"1.16",
	"1.17",
	"1.18",
	"1.19",
	"1.20",
	"1.21",
	"1.22",
	"1.28",
}

// MaxNoGap is the newest Supported version reachable without skipping a
// minor, the client's opening bid during negotiation. Kept consistent with
// Supported by test.
const MaxNoGap = "1.22"

// Negotiable reports whether a requested version means "newest version both
// sides support" instead of a literal pin.
func Negotiable(requested string) bool {
	return requested == "1" || requested == "1.0"
}

// MaxWithoutGap returns the newest version reachable from the start of the
// ordered list without skipping a minor. A server accepting the head of the
// list accepts everything up to the returned version.
func MaxWithoutGap(versions []string) (string, error) {
	if len(versions) == 0 {
		return "", fmt.Errorf("no versions to negotiate from")
	}
	prev, err := Parse(versions[0])
	if err != nil {
		return "", err
	}
	last := versions[0]
	for _, raw := range versions[1:] {
		next, err := Parse(raw)
		if err != nil {
			return "", err
		}
		if next.Major != prev.Major || next.Minor != prev.Minor+1 {
			break
		}
		prev = next
		last = raw
	}
	return last, nil
}
