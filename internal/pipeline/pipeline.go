package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cppvulnimpact/engine/internal/cxxscan"
	"github.com/cppvulnimpact/engine/internal/derrors"
	"github.com/cppvulnimpact/engine/internal/impact"
	"github.com/cppvulnimpact/engine/internal/nvd"
)

// Summary is a per-run rollup over the Impact Analysis and the
// vulnerabilities map, supplementing §3's "Impact Analysis" with the
// low-cost aggregate figures a caller typically wants first.
type Summary struct {
	DirectlyVulnerableCount   int               `json:"directly_vulnerable_count"`
	IndirectlyVulnerableCount int               `json:"indirectly_vulnerable_count"`
	HighestSeverityByLibrary  map[string]string `json:"highest_severity_by_library"`
	LibraryWithMostCVEs       string            `json:"library_with_most_cves,omitempty"`
}

// Report is the final aggregated output of one analysis run (§6 "Outputs
// produced for collaborators").
type Report struct {
	Vulnerabilities map[string]nvd.VulnerabilityResult `json:"vulnerabilities"`
	CallGraph       *cxxscan.CallGraph                 `json:"call_graph"`
	Impact          impact.Result                      `json:"impact"`
	Summary         Summary                            `json:"summary"`
}

// Orchestrator drives components A-F in the order §2 establishes and owns
// the run's clock, logger, and CVE client (§4.G: "the orchestrator is the
// only place where an analysis run's clock ... and log sink are owned").
type Orchestrator struct {
	Config Config
	Client *nvd.Client
	Logger *log.Logger
}

// New builds an Orchestrator from cfg. A nil logger discards all warnings.
func New(cfg Config, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		Config: cfg,
		Client: nvd.NewClient(cfg.NVDBaseURL, cfg.NVDAPIKey, cfg.RequestTimeout, logger),
		Logger: logger,
	}
}

// FilterSourceFiles keeps only the paths in files whose extension is
// recognized by the orchestrator's configuration (§6).
func (o *Orchestrator) FilterSourceFiles(files []string) []string {
	exts := make(map[string]bool)
	for _, e := range o.Config.extensions() {
		exts[e] = true
	}
	var kept []string
	for _, f := range files {
		if exts[filepath.Ext(f)] {
			kept = append(kept, f)
		}
	}
	return kept
}

// Run executes one analysis: dependencies are checked against the CVE
// database (C->B->A) while source files are parsed into a call graph (D,
// consulting E), these two phases bound by the single errgroup-managed
// concurrency boundary §4.G/§5 permit. The merged outputs feed the Impact
// Analyzer (F). checkedAt is the timestamp the orchestrator stamps onto
// every Vulnerability Result for this run (§4.G owns the run's clock).
//
// The only fatal condition is an empty source file list (§7,
// "no-sources is fatal to the run"); an empty dependency list is a warning
// that yields an empty vulnerabilities map.
func (o *Orchestrator) Run(ctx context.Context, deps []nvd.Dependency, sourceFiles []string, checkedAt time.Time) (_ *Report, err error) {
	defer derrors.Wrap(&err, "pipeline.Orchestrator.Run")

	if len(sourceFiles) == 0 {
		return nil, fmt.Errorf("no source files to analyze")
	}
	if len(deps) == 0 {
		o.Logger.Printf("pipeline: no dependencies supplied, proceeding with an empty vulnerability set")
	}

	var (
		vulnerabilities map[string]nvd.VulnerabilityResult
		graph           *cxxscan.CallGraph
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vulnerabilities = o.checkDependencies(gctx, deps, checkedAt)
		return nil
	})
	g.Go(func() error {
		built, buildErr := cxxscan.Build(gctx, sourceFiles, o.Logger)
		if buildErr != nil {
			return buildErr
		}
		graph = built
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	libs := make([]string, 0, len(vulnerabilities))
	for name := range vulnerabilities {
		libs = append(libs, name)
	}
	sort.Strings(libs)

	analysis := impact.Analyze(graph, libs)
	summary := buildSummary(vulnerabilities, analysis)

	return &Report{
		Vulnerabilities: vulnerabilities,
		CallGraph:       graph,
		Impact:          analysis,
		Summary:         summary,
	}, nil
}

// checkDependencies runs the CVE client over deps sequentially. The client
// is already strictly serial internally (§4.C/§5), so no additional
// fan-out is attempted here; a per-dependency failure is logged and the
// run continues (§7's External-unavailable taxonomy).
func (o *Orchestrator) checkDependencies(ctx context.Context, deps []nvd.Dependency, checkedAt time.Time) map[string]nvd.VulnerabilityResult {
	out := make(map[string]nvd.VulnerabilityResult)
	for _, dep := range deps {
		if err := ctx.Err(); err != nil {
			o.Logger.Printf("pipeline: stopping dependency checks: %v", err)
			break
		}
		res, err := o.Client.CheckDependency(ctx, dep, checkedAt)
		if err != nil {
			o.Logger.Printf("pipeline: checking dependency %q: %v", dep.Name, err)
			continue
		}
		if res == nil {
			continue
		}
		out[res.LibraryName] = *res
	}
	return out
}

var severityRank = map[string]int{
	"CRITICAL": 5, "HIGH": 4, "MEDIUM": 3, "LOW": 2, "NONE": 1, "UNKNOWN": 0,
}

func buildSummary(vulns map[string]nvd.VulnerabilityResult, analysis impact.Result) Summary {
	summary := Summary{
		DirectlyVulnerableCount:   len(analysis.DirectlyVulnerable),
		IndirectlyVulnerableCount: len(analysis.IndirectlyVulnerable),
		HighestSeverityByLibrary:  make(map[string]string),
	}

	names := make([]string, 0, len(vulns))
	for name := range vulns {
		names = append(names, name)
	}
	sort.Strings(names)

	bestCount := -1
	for _, name := range names {
		v := vulns[name]
		best := "UNKNOWN"
		for _, c := range v.CVEs {
			if severityRank[c.Severity] > severityRank[best] {
				best = c.Severity
			}
		}
		summary.HighestSeverityByLibrary[name] = best
		if len(v.CVEs) > bestCount {
			bestCount = len(v.CVEs)
			summary.LibraryWithMostCVEs = name
		}
	}
	return summary
}
