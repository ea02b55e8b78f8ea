// Package nvd implements the CVE Database Client (component C): rate-limited
// keyword queries to the public NVD REST API, response normalization, and
// the Dependency / Vulnerability Result data model (§3) the rest of the
// pipeline consumes.
package nvd

import "time"

// DependencySource tags how a Dependency was discovered by the (external,
// out-of-scope) CMake extractor.
type DependencySource string

const (
	SourceFetched       DependencySource = "fetched"
	SourceSystemFound   DependencySource = "system-found"
	SourceSubproject    DependencySource = "subproject"
	SourcePackageConfig DependencySource = "package-config"
)

// Dependency is a declared third-party artifact (§3). Immutable after
// extraction.
type Dependency struct {
	Name    string           `json:"name"`
	Vendor  string           `json:"vendor,omitempty"`
	Version string           `json:"version"`
	Source  DependencySource `json:"source,omitempty"`
}

// VulnerabilityResult is the per-library outcome of a vulnerability check
// (§3). A library with no matched CVEs is never represented in the final
// map — callers filter this out themselves, matching §3's "omitted from
// the final map" rule and §6's output contract.
type VulnerabilityResult struct {
	LibraryName string       `json:"library_name"`
	Version     string       `json:"version"`
	CheckedAt   time.Time    `json:"checked_at"`
	CVEs        []CVESummary `json:"cves"`
}

// CVESummary is the subset of a matched CVE record worth surfacing in a
// VulnerabilityResult, keeping the public output shape independent of the
// internal cpe.CVERecord representation.
type CVESummary struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	CVSSScore   *float64   `json:"cvss_score,omitempty"`
	Severity    string     `json:"severity"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
