// Package cpe implements the CPE Matcher (component B) and the CVE/CPE
// Match data model (§3) it operates over: given a CVE record and a
// (vendor, product, version) query, decide whether the query is affected
// and extract the matched version fact as a witness.
//
// Vendor-filtering is grounded on the wildcard/case-insensitive attribute
// comparison approach in quay-claircore's toolkit/types/cpe package, scaled
// down to the spec's simpler colon-split URI parsing instead of full WFN
// binding.
package cpe

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cppvulnimpact/engine/internal/version"
)

// Severity bands a CVE record's impact, per §3.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityNone     Severity = "NONE"
	SeverityUnknown  Severity = "UNKNOWN"
)

// BandFromScore derives a Severity from a numeric CVSS base score using the
// banding rule in §3: >=9.0 CRITICAL, >=7.0 HIGH, >=4.0 MEDIUM, >0 LOW, else
// NONE.
func BandFromScore(score float64) Severity {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	case score > 0:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// CPEMatchEntry is one row of vulnerability applicability (§3 "CPE Match").
type CPEMatchEntry struct {
	URI            string
	Vulnerable     bool
	StartIncluding string
	StartExcluding string
	EndIncluding   string
	EndExcluding   string
}

func (m CPEMatchEntry) bounds() version.Bounds {
	return version.Bounds{
		StartIncluding: m.StartIncluding,
		StartExcluding: m.StartExcluding,
		EndIncluding:   m.EndIncluding,
		EndExcluding:   m.EndExcluding,
	}
}

// CVERecord is a CVE as returned by the database (§3).
type CVERecord struct {
	ID            string
	Description   string
	CVSSScore     *float64
	Severity      Severity
	PublishedDate *time.Time
	CPEMatches    []CPEMatchEntry
}

// Query is the (vendor, product, version) lookup key a caller matches a
// CVERecord against. Vendor is optional; an empty Vendor disables the
// vendor filter (§4.B step 1).
type Query struct {
	Vendor  string
	Product string
	Version string
}

// Witness is the compact applicability fact recorded for a matched CPE
// entry (§4.B step 3): either the stripped range bounds, a concrete
// version extracted from the URI, or a raw-URI fallback when the URI
// itself couldn't be parsed.
type Witness map[string]string

func (w Witness) key() string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, w[k])
	}
	return b.String()
}

// Matches reports whether rec is affected by q, and the deduplicated set
// of witnesses produced by the CPE Match entries that matched.
func Matches(rec CVERecord, q Query) (bool, []Witness) {
	seen := make(map[string]bool)
	var witnesses []Witness
	for _, m := range rec.CPEMatches {
		if !m.Vulnerable {
			continue
		}
		if !vendorMatches(m.URI, q.Vendor) {
			continue
		}
		w, ok := versionMatches(m, q.Version)
		if !ok {
			continue
		}
		k := w.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		witnesses = append(witnesses, w)
	}
	return len(witnesses) > 0, witnesses
}

// splitCPEURI splits a CPE URI on unescaped colons.
func splitCPEURI(uri string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range uri {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// vendorField returns the vendor component of the CPE URI, handling both
// CPE 2.3 ("cpe:2.3:<part>:<vendor>:...", vendor at index 3) and legacy
// ("cpe:/<part>:<vendor>:...", vendor at index 2) forms. ok is false if the
// URI couldn't be recognized as either form.
func vendorField(uri string) (vendor string, ok bool) {
	fields := splitCPEURI(uri)
	if len(fields) < 2 {
		return "", false
	}
	if fields[0] != "cpe" {
		return "", false
	}
	if fields[1] == "2.3" {
		if len(fields) <= 3 {
			return "", false
		}
		return fields[3], true
	}
	// Legacy form: second field is "/<part>" (e.g. "cpe:/a").
	if strings.HasPrefix(fields[1], "/") {
		if len(fields) <= 2 {
			return "", false
		}
		return fields[2], true
	}
	return "", false
}

// versionField returns the sixth colon-delimited field of a CPE 2.3 URI
// (the version component), or "" with ok=false if the URI isn't
// recognizable CPE 2.3.
func versionField(uri string) (v string, ok bool) {
	fields := splitCPEURI(uri)
	if len(fields) < 6 || fields[0] != "cpe" || fields[1] != "2.3" {
		return "", false
	}
	return fields[5], true
}

func vendorMatches(uri, queryVendor string) bool {
	if queryVendor == "" {
		return true
	}
	cpeVendor, ok := vendorField(uri)
	if !ok {
		// Unparseable URI: don't let the vendor filter reject it; the
		// version decision (and its cpe_raw fallback) still governs
		// whether this entry ultimately matches.
		return true
	}
	if cpeVendor == "" || cpeVendor == "*" {
		return true
	}
	return strings.EqualFold(cpeVendor, queryVendor)
}

func versionMatches(m CPEMatchEntry, concrete string) (Witness, bool) {
	if m.bounds().HasAny() {
		if !version.Satisfies(concrete, m.bounds()) {
			return nil, false
		}
		w := Witness{}
		if m.StartIncluding != "" {
			w["startIncluding"] = m.StartIncluding
		}
		if m.StartExcluding != "" {
			w["startExcluding"] = m.StartExcluding
		}
		if m.EndIncluding != "" {
			w["endIncluding"] = m.EndIncluding
		}
		if m.EndExcluding != "" {
			w["endExcluding"] = m.EndExcluding
		}
		return w, true
	}

	v, ok := versionField(m.URI)
	if !ok {
		return Witness{"cpe_raw": m.URI}, true
	}
	if v == "*" || v == "-" {
		return Witness{"version": v}, true
	}
	if normalize(v) == normalize(concrete) {
		return Witness{"version": v}, true
	}
	return nil, false
}

// normalize strips an optional leading "v" so CPE-style bare versions and
// "v"-prefixed declared versions compare equal.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "v")
	return strings.ToLower(s)
}
