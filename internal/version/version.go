// Package version implements the Version Range Evaluator (component A):
// PEP440-compatible version parsing and comparison, and the range-bound
// satisfaction check CPE applicability relies on.
//
// The parser and comparator are adapted from the PEP440 grammar used by
// Python's "packaging" library, the same grammar the reference NVD/CPE
// tooling parses versions with.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var preReleaseMapping = map[string]string{
	"a": "a", "alpha": "a",
	"b": "b", "beta": "b",
	"pre": "rc", "preview": "rc", "rc": "rc", "c": "rc",
}

var postReleaseMapping = map[string]string{
	"r": "post", "rev": "post", "post": "post",
}

const grammar = `v?` +
	`(?:(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_\.]?(?P<pre_l>(a|b|c|rc|alpha|beta|pre|preview))[-_\.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_\.]?(?P<post_l>post|rev|r)[-_\.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_\.]?(?P<dev_l>dev)[-_\.]?(?P<dev_n>[0-9]+)?)?)` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_\.][a-z0-9]+)*))?`

var versionRegexp = regexp.MustCompile(`(?i)^\s*` + grammar + `\s*$`)

// letterNumber is a (keyword, ordinal) pair used for the pre/post/dev
// release segments, e.g. ("a", 3) for "a3" or ("post", 1) for ".post1".
type letterNumber struct {
	letter string
	number int64
}

func (ln letterNumber) isZero() bool { return ln.letter == "" && ln.number == 0 }

// Version is a parsed PEP440-compatible version.
type Version struct {
	epoch    int64
	release  []int64
	pre      letterNumber
	post     letterNumber
	dev      letterNumber
	local    string
	original string
}

// Parse parses a version string. Parsing is intentionally lenient: callers
// that need a conservative fallback on failure (per spec §4.A) check the
// returned error themselves, rather than Parse silently substituting a
// sentinel.
func Parse(s string) (Version, error) {
	m := versionRegexp.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("version: malformed version %q", s)
	}

	var v Version
	v.original = s
	names := versionRegexp.SubexpNames()
	var postSeen bool
	for i, name := range names {
		val := m[i]
		if val == "" {
			continue
		}
		var err error
		switch name {
		case "epoch":
			v.epoch, err = strconv.ParseInt(val, 10, 64)
		case "release":
			for _, part := range strings.Split(val, ".") {
				n, perr := strconv.ParseInt(part, 10, 64)
				if perr != nil {
					return Version{}, fmt.Errorf("version: bad release segment %q in %q: %w", part, s, perr)
				}
				v.release = append(v.release, n)
			}
		case "pre_l":
			v.pre.letter = preReleaseMapping[strings.ToLower(val)]
		case "pre_n":
			v.pre.number, err = strconv.ParseInt(val, 10, 64)
		case "post_l":
			v.post.letter = postReleaseMapping[strings.ToLower(val)]
			postSeen = true
		case "post_n1", "post_n2":
			if !postSeen {
				v.post.letter = "post"
				postSeen = true
			}
			v.post.number, err = strconv.ParseInt(val, 10, 64)
		case "dev_l":
			v.dev.letter = strings.ToLower(val)
		case "dev_n":
			v.dev.number, err = strconv.ParseInt(val, 10, 64)
		case "local":
			v.local = strings.ToLower(val)
		}
		if err != nil {
			return Version{}, fmt.Errorf("version: parsing %q: %w", s, err)
		}
	}
	if len(v.release) == 0 {
		return Version{}, fmt.Errorf("version: no release segment in %q", s)
	}
	return v, nil
}

// Compare returns -1, 0, or 1 if v is smaller than, equal to, or larger
// than other, using PEP440 precedence rules. The local version label is
// parsed but not compared.
func (v Version) Compare(other Version) int {
	if v.epoch != other.epoch {
		if v.epoch > other.epoch {
			return 1
		}
		return -1
	}

	for i := 0; i < len(v.release) || i < len(other.release); i++ {
		var a, b int64
		if i < len(v.release) {
			a = v.release[i]
		}
		if i < len(other.release) {
			b = other.release[i]
		}
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}

	// A dev-release with neither a pre- nor a post-release segment
	// (1.0.dev1) sorts before every other form of the same release,
	// including its pre-releases (1.0a1).
	vBareDev := !v.dev.isZero() && v.pre.isZero() && v.post.isZero()
	oBareDev := !other.dev.isZero() && other.pre.isZero() && other.post.isZero()
	if vBareDev != oBareDev {
		if vBareDev {
			return -1
		}
		return 1
	}

	if c := comparePre(v.pre, other.pre); c != 0 {
		return c
	}
	if c := comparePost(v.post, other.post); c != 0 {
		return c
	}
	return compareDev(v.dev, other.dev)
}

// comparePre orders: no pre-release > any pre-release (a final release is
// newer than any of its own pre-releases), then lexicographically by
// letter, then numerically.
func comparePre(a, b letterNumber) int {
	if a.isZero() && b.isZero() {
		return 0
	}
	if a.isZero() {
		return 1
	}
	if b.isZero() {
		return -1
	}
	if a.letter != b.letter {
		return strings.Compare(a.letter, b.letter)
	}
	switch {
	case a.number > b.number:
		return 1
	case a.number < b.number:
		return -1
	default:
		return 0
	}
}

// comparePost orders: a post-release is newer than the release it follows,
// so having one beats not having one.
func comparePost(a, b letterNumber) int {
	if a.isZero() && b.isZero() {
		return 0
	}
	if a.isZero() {
		return -1
	}
	if b.isZero() {
		return 1
	}
	switch {
	case a.number > b.number:
		return 1
	case a.number < b.number:
		return -1
	default:
		return 0
	}
}

// compareDev orders: a dev-release is older than the release it precedes,
// so having one loses to not having one.
func compareDev(a, b letterNumber) int {
	if a.isZero() && b.isZero() {
		return 0
	}
	if a.isZero() {
		return 1
	}
	if b.isZero() {
		return -1
	}
	switch {
	case a.number > b.number:
		return 1
	case a.number < b.number:
		return -1
	default:
		return 0
	}
}

func (v Version) String() string {
	if v.original != "" {
		return v.original
	}
	return "0"
}

// Bounds is the set of optional version-range comparators a CPE Match entry
// may carry (§3 "CPE Match").
type Bounds struct {
	StartIncluding string
	StartExcluding string
	EndIncluding   string
	EndExcluding   string
}

// HasAny reports whether at least one bound is present.
func (b Bounds) HasAny() bool {
	return b.StartIncluding != "" || b.StartExcluding != "" || b.EndIncluding != "" || b.EndExcluding != ""
}

// isUnknownSentinel reports whether concrete is one of the values
// ("unknown", "any", or empty) that always satisfy any bound set,
// conservatively, per §4.A.
func isUnknownSentinel(concrete string) bool {
	switch strings.ToLower(strings.TrimSpace(concrete)) {
	case "unknown", "any", "":
		return true
	default:
		return false
	}
}

// Satisfies decides whether concrete satisfies bounds, per §4.A:
//   - an unparseable concrete version is conservatively satisfying (TRUE)
//   - the "unknown"/"any" sentinels are always satisfying
//   - every present bound must hold; an unparseable bound is conservatively
//     satisfying (TRUE) for the whole check, not just that one bound
func Satisfies(concrete string, bounds Bounds) bool {
	if isUnknownSentinel(concrete) {
		return true
	}
	v, err := Parse(concrete)
	if err != nil {
		return true
	}
	if !bounds.HasAny() {
		return true
	}

	type check struct {
		raw string
		op  func(cmp int) bool
	}
	checks := []check{
		{bounds.StartIncluding, func(cmp int) bool { return cmp >= 0 }},
		{bounds.StartExcluding, func(cmp int) bool { return cmp > 0 }},
		{bounds.EndIncluding, func(cmp int) bool { return cmp <= 0 }},
		{bounds.EndExcluding, func(cmp int) bool { return cmp < 0 }},
	}
	parsed := make([]Version, len(checks))
	for i, c := range checks {
		if c.raw == "" {
			continue
		}
		bv, err := Parse(c.raw)
		if err != nil {
			return true
		}
		parsed[i] = bv
	}
	for i, c := range checks {
		if c.raw == "" {
			continue
		}
		if !c.op(v.Compare(parsed[i])) {
			return false
		}
	}
	return true
}
