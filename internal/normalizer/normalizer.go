// Package normalizer handles document name normalization for memarchive.
// It strips version suffixes so that every version of a document shares one
// base name, and computes the next version for auto-versioning.
package normalizer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// versionSuffix matches a trailing "_v<digits>(.<digits>)*" on a stem.
var versionSuffix = regexp.MustCompile(`_v(\d+(?:\.\d+)*)$`)

// Version is a parsed document version. Only major and minor are tracked;
// deeper components are folded into Minor's position by ParseVersion.
type Version struct {
	Major int
	Minor int
}

// String renders the version as "v<major>.<minor>".
func (v Version) String() string {
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
}

// Stem returns the filename without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// StripVersion removes a trailing version suffix from a stem, preserving case.
// "activeContext_v1.2" becomes "activeContext"; stems without a suffix are
// returned unchanged.
func StripVersion(stem string) string {
	return versionSuffix.ReplaceAllString(stem, "")
}

// BaseName returns the version-stripped stem of a path.
func BaseName(path string) string {
	return StripVersion(Stem(path))
}

// ParseVersion extracts the version from a stem. ok is false when the stem
// carries no version suffix.
func ParseVersion(stem string) (v Version, ok bool) {
	m := versionSuffix.FindStringSubmatch(stem)
	if m == nil {
		return Version{}, false
	}

	parts := strings.Split(m[1], ".")
	v.Major, _ = strconv.Atoi(parts[0])
	if len(parts) > 1 {
		v.Minor, _ = strconv.Atoi(parts[1])
	}
	return v, true
}

// NextVersion bumps the minor component. Documents without a version start at v1.0.
func NextVersion(stem string) Version {
	v, ok := ParseVersion(stem)
	if !ok {
		return Version{Major: 1, Minor: 0}
	}
	return Version{Major: v.Major, Minor: v.Minor + 1}
}

// VersionedName builds "<base>_v<major>.<minor><ext>" for the next version of path.
func VersionedName(path string) string {
	stem := Stem(path)
	next := NextVersion(stem)
	return fmt.Sprintf("%s_%s%s", StripVersion(stem), next, filepath.Ext(path))
}
