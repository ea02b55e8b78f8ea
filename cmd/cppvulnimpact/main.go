// Command cppvulnimpact reports which functions in a C/C++ source tree are
// reachable from a known-vulnerable third-party dependency, by building a
// call graph over the source and propagating vulnerability status through
// it (see internal/pipeline).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cppvulnimpact/engine/internal/nvd"
	"github.com/cppvulnimpact/engine/internal/pipeline"
)

var (
	jsonFlag    = flag.Bool("json", false, "print the full report as JSON")
	apiKeyFlag  = flag.String("apikey", "", "NVD API key (raises the rate-limit band)")
	timeoutFlag = flag.Duration("timeout", 0, "per-request timeout for the CVE client (default 15s)")
	depsFlag    = flag.String("deps", "", "path to a JSON file listing declared dependencies")
)

const usage = `cppvulnimpact: identify functions reachable from known-vulnerable dependencies.

Usage:

	cppvulnimpact [flags] {source directory}

Flags:

	-json     Print the full report in JSON format.
	-apikey   NVD API key.
	-timeout  Per-request timeout for the CVE client (default 15s).
	-deps     Path to a JSON file listing declared dependencies, each
	          {"name": "...", "vendor": "...", "version": "...", "source": "..."}.
	          Omit to run with an empty dependency set (a CMake manifest
	          extractor is outside this tool's scope).
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if len(flag.Args()) != 1 {
		die("%s", usage)
	}
	root := flag.Args()[0]

	cfg := pipeline.DefaultConfig()
	cfg.NVDAPIKey = *apiKeyFlag
	if *timeoutFlag > 0 {
		cfg.RequestTimeout = *timeoutFlag
	}

	logger := log.New(os.Stderr, "cppvulnimpact: ", 0)
	orchestrator := pipeline.New(cfg, logger)

	sources, err := walkSourceFiles(root)
	if err != nil {
		die("cppvulnimpact: %s", err)
	}
	sources = orchestrator.FilterSourceFiles(sources)

	deps, err := loadDependencies(*depsFlag)
	if err != nil {
		die("cppvulnimpact: %s", err)
	}

	report, err := orchestrator.Run(context.Background(), deps, sources, time.Now())
	if err != nil {
		die("cppvulnimpact: %s", err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			die("cppvulnimpact: %s", err)
		}
		return
	}

	printReport(report)
}

func walkSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func loadDependencies(path string) ([]nvd.Dependency, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dependencies file: %w", err)
	}
	var deps []nvd.Dependency
	if err := json.Unmarshal(data, &deps); err != nil {
		return nil, fmt.Errorf("parsing dependencies file: %w", err)
	}
	return deps, nil
}

func printReport(report *pipeline.Report) {
	fmt.Printf("directly vulnerable functions: %d\n", report.Summary.DirectlyVulnerableCount)
	fmt.Printf("indirectly vulnerable functions: %d\n", report.Summary.IndirectlyVulnerableCount)
	for _, name := range report.Impact.VulnerableFunctions {
		chain := report.Impact.VulnerabilityChains[name]
		fmt.Printf("  %s: %v\n", name, chain)
	}
	if report.Summary.LibraryWithMostCVEs != "" {
		fmt.Printf("library with the most CVEs: %s\n", report.Summary.LibraryWithMostCVEs)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
