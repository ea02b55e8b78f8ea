// Package collab declares interfaces for the collaborator-owned concerns §1
// places outside the CORE: CMake manifest extraction, archive extraction,
// and report rendering. These are thin adapter points, not
// implementations — the CORE never constructs a concrete ManifestParser,
// ArchiveExtractor, or ReportRenderer itself, and the orchestrator in
// package pipeline does not call them (this package imports pipeline, not
// the other way round).
package collab

import (
	"context"

	"github.com/cppvulnimpact/engine/internal/nvd"
	"github.com/cppvulnimpact/engine/internal/pipeline"
)

// ManifestParser extracts a project's declared dependencies from its build
// manifest (a CMake project tree in the reference system). Absence of a
// manifest is a warning, not an error (§7); implementations should return
// an empty slice rather than an error in that case.
type ManifestParser interface {
	ParseManifest(ctx context.Context, projectRoot string) ([]nvd.Dependency, error)
}

// ArchiveExtractor unpacks a project archive (tarball, zip, VCS checkout)
// into a working directory the orchestrator can then enumerate for source
// files and a manifest. Callers are responsible for releasing the
// returned directory on every exit path (§5 "working directories are
// scoped").
type ArchiveExtractor interface {
	Extract(ctx context.Context, archivePath string) (workDir string, release func(), err error)
}

// ReportRenderer turns a finished pipeline.Report into a human- or
// machine-consumable artifact (e.g. a prose summary produced by an LLM, or
// a static HTML page). Not implemented or called anywhere in this module,
// and not exercised by the CORE's own tests.
type ReportRenderer interface {
	Render(ctx context.Context, report *pipeline.Report) ([]byte, error)
}
