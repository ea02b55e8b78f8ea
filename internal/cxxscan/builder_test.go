package cxxscan

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestBuildSimpleCallGraph(t *testing.T) {
	dir := t.TempDir()
	src := `
int runTaskA(int x) {
    return x + 1;
}

int main() {
    int y = runTaskA(1);
    std::sort(y);
    return 0;
}
`
	path := writeTemp(t, dir, "a.cpp", src)

	graph, err := Build(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, ok := graph.Functions["runTaskA"]; !ok {
		t.Fatalf("expected runTaskA to be a graph node")
	}
	if _, ok := graph.Functions["main"]; !ok {
		t.Fatalf("expected main to be a graph node")
	}

	mainCallees := graph.Global["main"]
	wantCallees := []string{"runTaskA", "std::sort"}
	if len(mainCallees) != len(wantCallees) {
		t.Fatalf("main callees = %v, want %v", mainCallees, wantCallees)
	}
	for i, c := range wantCallees {
		if mainCallees[i] != c {
			t.Fatalf("main callees = %v, want %v", mainCallees, wantCallees)
		}
	}

	if fns := graph.FileFunctions[path]; len(fns) != 2 {
		t.Fatalf("FileFunctions[%s] = %v, want 2 entries", path, fns)
	}
}

func TestBuildIgnoresCallsOutsideAnyFunction(t *testing.T) {
	dir := t.TempDir()
	src := `
void forwardDeclared(int x);

int orphanCall = someFunction();
`
	path := writeTemp(t, dir, "b.cpp", src)

	graph, err := Build(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(graph.Functions) != 0 {
		t.Errorf("no function should be registered (someFunction is called with no enclosing function at top level), got %v", graph.Functions)
	}
}

func TestBuildMergesAcrossFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	srcA := `
void runTaskA() {
    runTaskB();
}
`
	srcB := `
void runTaskB() {
    runTaskC();
}
`
	pathA := writeTemp(t, dir, "x.cpp", srcA)
	pathB := writeTemp(t, dir, "y.cpp", srcB)

	graph, err := Build(context.Background(), []string{pathA, pathB}, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	info, ok := graph.Functions["runTaskB"]
	if !ok {
		t.Fatalf("expected runTaskB to be registered from its definition in y.cpp")
	}
	if info.Line == 0 {
		t.Errorf("expected runTaskB's definition line to be set from y.cpp, got 0")
	}
	if !containsString(info.Files, pathB) {
		t.Errorf("expected runTaskB's Files to include %s, got %v", pathB, info.Files)
	}

	if got := graph.Global["runTaskA"]; len(got) != 1 || got[0] != "runTaskB" {
		t.Errorf("runTaskA's callees = %v, want [runTaskB]", got)
	}
}

func TestBuildSkipsUnreadableFile(t *testing.T) {
	graph, err := Build(context.Background(), []string{"/nonexistent/path/does-not-exist.cpp"}, nil)
	if err != nil {
		t.Fatalf("Build should not fail on an unreadable file, got error: %v", err)
	}
	if len(graph.Functions) != 0 {
		t.Errorf("expected empty graph, got %d functions", len(graph.Functions))
	}
}

func TestBuildControlFlowGuardNotMistakenForDefinition(t *testing.T) {
	dir := t.TempDir()
	src := `
void runTaskA(int c) {
    if (c) {
        curl_easy_init();
    }
}
`
	path := writeTemp(t, dir, "c.cpp", src)

	graph, err := Build(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := graph.Functions["if"]; ok {
		t.Fatalf(`"if" must not be registered as a graph node, got %v`, graph.Functions)
	}
	if got := graph.Global["runTaskA"]; len(got) != 1 || got[0] != "curl_easy_init" {
		t.Errorf("runTaskA's callees = %v, want [curl_easy_init]", got)
	}
}

func TestBuildControlFlowGuardDoesNotSuppressGuardedCall(t *testing.T) {
	dir := t.TempDir()
	src := `
void runTaskA(int* ptr) {
    if (ptr) free(ptr);
}
`
	path := writeTemp(t, dir, "d.cpp", src)

	graph, err := Build(context.Background(), []string{path}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := graph.Global["runTaskA"]; len(got) != 1 || got[0] != "free" {
		t.Errorf("runTaskA's callees = %v, want [free] (guarded call must not be dropped as a false cast)", got)
	}
}

func TestExtractCalleeExprFieldAndQualified(t *testing.T) {
	toks := lex([]byte("obj->doWork(1)"))
	name, next := extractCalleeExpr(toks, 0)
	if name != "obj::doWork" {
		t.Errorf("extractCalleeExpr field expression = %q, want obj::doWork", name)
	}
	if toks[next].Text != "(" {
		t.Errorf("extractCalleeExpr next token = %q, want (", toks[next].Text)
	}

	toks2 := lex([]byte("std::sort(v)"))
	name2, _ := extractCalleeExpr(toks2, 0)
	if name2 != "std::sort" {
		t.Errorf("extractCalleeExpr qualified identifier = %q, want std::sort", name2)
	}
}
