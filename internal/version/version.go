package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Parse reads a strict semantic version. A single leading "v" is accepted.
func Parse(v string) (*semver.Version, error) {
	return semver.StrictNewVersion(strings.TrimPrefix(v, "v"))
}

// Valid reports whether v is a strict semantic version, optionally prefixed with "v".
func Valid(v string) bool {
	_, err := Parse(v)
	return err == nil
}

// Compare returns -1, 0 or 1 depending on whether a is lower than, equal to
// or greater than b.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", a, err)
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", b, err)
	}
	return va.Compare(vb), nil
}

// UpToDate reports whether a client at current needs no update to latest.
func UpToDate(latest, current string) (bool, error) {
	c, err := Compare(latest, current)
	if err != nil {
		return false, err
	}
	return c <= 0, nil
}

// LessThan is a lenient a < b where unparsable input is never lower.
func LessThan(a, b string) bool {
	c, err := Compare(a, b)
	return err == nil && c < 0
}

// GreaterThan is a lenient a > b where unparsable input is never greater.
func GreaterThan(a, b string) bool {
	c, err := Compare(a, b)
	return err == nil && c > 0
}
