// Package pipeline implements the Pipeline Orchestrator (component G): it
// sequences the CVE Database Client, CPE Matcher, and Version Range
// Evaluator over declared dependencies, runs the Call-Graph Builder over
// source files with the one concurrency boundary §4.G/§5 allow, and feeds
// both outputs into the Impact Analyzer.
package pipeline

import (
	"time"

	"github.com/cppvulnimpact/engine/internal/nvd"
)

// DefaultSourceExtensions are the C/C++ translation-unit suffixes
// recognized per §6.
var DefaultSourceExtensions = []string{".c", ".cpp", ".cc", ".cxx"}

// Config carries an analysis run's tunables (§6 "Configuration surface"),
// grounded on vulncheck.Config in the teacher's own orchestration layer.
type Config struct {
	// NVDBaseURL overrides the public CVE API endpoint; empty uses
	// nvd.DefaultBaseURL.
	NVDBaseURL string
	// NVDAPIKey, if set, moves the CVE client to the faster rate-limit
	// band (§4.C).
	NVDAPIKey string
	// RequestTimeout is the per-request timeout for the CVE client;
	// zero uses nvd.DefaultTimeout (15s, per §5).
	RequestTimeout time.Duration
	// SourceExtensions restricts which files in a source tree are fed to
	// the Call-Graph Builder. Empty uses DefaultSourceExtensions.
	SourceExtensions []string
}

// DefaultConfig returns the Config an orchestrator uses when none is
// supplied explicitly.
func DefaultConfig() Config {
	return Config{
		NVDBaseURL:       nvd.DefaultBaseURL,
		RequestTimeout:   nvd.DefaultTimeout,
		SourceExtensions: append([]string(nil), DefaultSourceExtensions...),
	}
}

func (c Config) extensions() []string {
	if len(c.SourceExtensions) == 0 {
		return DefaultSourceExtensions
	}
	return c.SourceExtensions
}
