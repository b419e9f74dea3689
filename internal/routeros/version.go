package routeros

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// gluedSuffix matches RouterOS pre-release spellings such as "7.16beta3" or "7.15rc1".
var gluedSuffix = regexp.MustCompile(`^(\d+(?:\.\d+)*)([A-Za-z][0-9A-Za-z.]*)$`)

// Version is a RouterOS or RouterBOOT version taken from the leading token of
// a raw version string ("7.15.3 (stable)" → "7.15.3").
//
// Versions that do not parse still order: they sort below every parseable
// version and among themselves by token, so comparison never fails.
type Version struct {
	token string
	sv    *semver.Version
}

// ParseVersion parses the leading token of raw.
func ParseVersion(raw string) Version {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Version{}
	}
	token := fields[0]

	candidate := token
	if m := gluedSuffix.FindStringSubmatch(token); m != nil {
		candidate = m[1] + "-" + m[2]
	}
	sv, err := semver.NewVersion(candidate)
	if err != nil {
		return Version{token: token}
	}
	return Version{token: token, sv: sv}
}

// Valid reports whether the token parsed as a version.
func (v Version) Valid() bool {
	return v.sv != nil
}

// String returns the leading token as printed by the device.
func (v Version) String() string {
	return v.token
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	switch {
	case v.sv != nil && o.sv != nil:
		return v.sv.Compare(o.sv)
	case v.sv == nil && o.sv == nil:
		return strings.Compare(v.token, o.token)
	case v.sv == nil:
		return -1
	default:
		return 1
	}
}

// Less reports v < o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// Equal reports v == o under version ordering ("7.15" equals "7.15.0").
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// AtLeast reports v >= o.
func (v Version) AtLeast(o Version) bool {
	return v.Compare(o) >= 0
}
