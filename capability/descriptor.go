// Package capability describes named, versioned behavior contracts.
//
// A Descriptor identifies a capability by a stable name and a
// major.minor.revision version. Providers may add features by bumping the
// minor or revision number; a major bump is a breaking change and never
// matches older requests.
package capability

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidDescriptor is returned for descriptors with an empty name,
// negative version parts or an unparsable version.
var ErrInvalidDescriptor = errors.New("invalid capability descriptor")

// Descriptor identifies a capability and the version of its contract.
type Descriptor struct {
	Name     string
	Major    int
	Minor    int
	Revision int
}

// New returns a descriptor for name at major.minor.revision.
func New(name string, major, minor, revision int) Descriptor {
	return Descriptor{Name: name, Major: major, Minor: minor, Revision: revision}
}

// Parse reads a descriptor in the form "name@1.2.3".
// The version may carry a leading "v" and omit trailing parts ("name@v1.2"
// is 1.2.0). A bare name without "@" is version 0.0.0.
func Parse(s string) (Descriptor, error) {
	name, ver, hasVersion := strings.Cut(strings.TrimSpace(s), "@")
	d := Descriptor{Name: strings.TrimSpace(name)}
	if hasVersion {
		v, err := semver.NewVersion(strings.TrimSpace(ver))
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %q: %v", ErrInvalidDescriptor, s, err)
		}
		if v.Prerelease() != "" || v.Metadata() != "" {
			return Descriptor{}, fmt.Errorf("%w: %q: pre-release and build metadata are not supported", ErrInvalidDescriptor, s)
		}
		d.Major, d.Minor, d.Revision = int(v.Major()), int(v.Minor()), int(v.Patch())
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// descriptor variables.
func MustParse(s string) Descriptor {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate reports whether d can be used as a registry key.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.Major < 0 || d.Minor < 0 || d.Revision < 0 {
		return fmt.Errorf("%w: %s: negative version", ErrInvalidDescriptor, d)
	}
	return nil
}

// String renders d as "name@major.minor.revision".
func (d Descriptor) String() string {
	return fmt.Sprintf("%s@%d.%d.%d", d.Name, d.Major, d.Minor, d.Revision)
}

// Version returns the version part of d as a semver value.
func (d Descriptor) Version() *semver.Version {
	return semver.New(uint64(d.Major), uint64(d.Minor), uint64(d.Revision), "", "")
}

// SatisfiedBy reports whether a provider offering p can serve a request for d.
func (d Descriptor) SatisfiedBy(p Descriptor) bool {
	return Matches(d, p)
}

// Matches reports whether a provider described by provided can serve a
// request described by requested: names are identical, major versions are
// equal, and the provider's minor/revision pair is not older than the
// requested one.
func Matches(requested, provided Descriptor) bool {
	if requested.Name != provided.Name || requested.Major != provided.Major {
		return false
	}
	if provided.Minor != requested.Minor {
		return provided.Minor > requested.Minor
	}
	return provided.Revision >= requested.Revision
}

// Compare orders the versions of a and b, ignoring names.
// It returns -1, 0 or 1.
func Compare(a, b Descriptor) int {
	switch {
	case a.Major != b.Major:
		return cmpInt(a.Major, b.Major)
	case a.Minor != b.Minor:
		return cmpInt(a.Minor, b.Minor)
	default:
		return cmpInt(a.Revision, b.Revision)
	}
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
