package cxxscan

import (
	"context"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// defEvent is a function_definition sighting recorded while walking one
// file, in source-traversal order.
type defEvent struct {
	name string
	line int
}

// callEvent is a call_expression sighting recorded while walking one file,
// attributed to its enclosing function, in source-traversal order.
type callEvent struct {
	caller string
	site   CallSite
}

// fileEvents is the partial, file-local result of scanning one source
// file, merged into the shared CallGraph afterwards in input-list order so
// the final graph is independent of parse scheduling (§5).
type fileEvents struct {
	path  string
	defs  []defEvent
	calls []callEvent
	ok    bool
}

// Build parses each file in files into a CallGraph (component D). Files
// are parsed concurrently (one errgroup goroutine per file); partial per-file
// results are merged into the shared graph sequentially, in the order
// files were given, which is what makes the first-encounter orderings in
// §3/§5 reproducible regardless of parse scheduling. A file that can't be
// opened is logged and skipped (§7); this never aborts the run.
func Build(ctx context.Context, files []string, logger *log.Logger) (*CallGraph, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	results := make([]fileEvents, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for idx, path := range files {
		idx, path := idx, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(path)
			if err != nil {
				logger.Printf("cxxscan: skipping %s: %v", path, err)
				return nil
			}
			results[idx] = scanFile(path, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	graph := newCallGraph()
	for _, fe := range results {
		if !fe.ok {
			continue
		}
		mergeFile(graph, fe)
	}
	return graph, nil
}

func mergeFile(graph *CallGraph, fe fileEvents) {
	for _, d := range fe.defs {
		info, ok := graph.Functions[d.name]
		if !ok {
			info = &FunctionInfo{Name: d.name, Line: d.line}
			graph.Functions[d.name] = info
			graph.Global[d.name] = []string{}
		}
		if !containsString(info.Files, fe.path) {
			info.Files = append(info.Files, fe.path)
		}
		if !containsString(graph.FileFunctions[fe.path], d.name) {
			graph.FileFunctions[fe.path] = append(graph.FileFunctions[fe.path], d.name)
		}
		if graph.FileCallGraphs[fe.path] == nil {
			graph.FileCallGraphs[fe.path] = make(map[string][]string)
		}
		if _, ok := graph.FileCallGraphs[fe.path][d.name]; !ok {
			graph.FileCallGraphs[fe.path][d.name] = []string{}
		}
	}

	for _, c := range fe.calls {
		info, ok := graph.Functions[c.caller]
		if !ok {
			// Defensive registration per §4.D: a caller that reaches this
			// point without a prior definition event gets a line-0 stub.
			info = &FunctionInfo{Name: c.caller, Line: 0}
			graph.Functions[c.caller] = info
			graph.Global[c.caller] = []string{}
		}
		info.Calls = append(info.Calls, c.site)

		if !containsString(graph.Global[c.caller], c.site.Function) {
			graph.Global[c.caller] = append(graph.Global[c.caller], c.site.Function)
		}
		if graph.FileCallGraphs[fe.path] == nil {
			graph.FileCallGraphs[fe.path] = make(map[string][]string)
		}
		if !containsString(graph.FileCallGraphs[fe.path][c.caller], c.site.Function) {
			graph.FileCallGraphs[fe.path][c.caller] = append(graph.FileCallGraphs[fe.path][c.caller], c.site.Function)
		}
	}
}

// callFrame tracks one enclosing function on the walk stack. bodyDepth is
// the brace depth immediately inside the function's compound statement;
// the frame pops when brace depth falls back below it.
type callFrame struct {
	name      string
	bodyDepth int
}

// scanFile performs the single depth-first walk described in §4.D over one
// file's token stream, carrying the enclosing-function context through an
// explicit brace-depth stack instead of real tree recursion (see
// DESIGN.md).
func scanFile(path string, src []byte) fileEvents {
	toks := lex(src)
	fe := fileEvents{path: path, ok: true}

	var stack []callFrame
	braceDepth := 0
	enclosing := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1].name
	}

	n := len(toks)
	i := 0
	for i < n {
		t := toks[i]

		switch {
		case t.Kind == TokPunct && t.Text == "{":
			braceDepth++
			i++

		case t.Kind == TokPunct && t.Text == "}":
			braceDepth--
			for len(stack) > 0 && stack[len(stack)-1].bodyDepth-1 == braceDepth {
				stack = stack[:len(stack)-1]
			}
			i++

		case t.Kind == TokIdent:
			name, next := extractCalleeExpr(toks, i)
			if next < n && toks[next].Kind == TokPunct && toks[next].Text == "(" {
				parenEnd := matchParen(toks, next)
				if parenEnd < 0 {
					i = next
					continue
				}
				// "(...)" immediately after a control-flow keyword (if,
				// for, while, switch, catch, ...) is a condition/guard, not
				// a function_definition or call_expression; the compound
				// statement it introduces is handled by the normal brace
				// case on the next token, leaving the enclosing function
				// unchanged.
				if cxxKeywords[name] {
					i = parenEnd + 1
					continue
				}
				after := skipQualifiers(toks, parenEnd+1)
				if after < n && toks[after].Kind == TokPunct && toks[after].Text == "{" {
					fe.defs = append(fe.defs, defEvent{name: name, line: t.Line})
					braceDepth++
					stack = append(stack, callFrame{name: name, bodyDepth: braceDepth})
					i = after + 1
					continue
				}

				if caller := enclosing(); caller != "" {
					parentIsCastLike := precededByCastParen(toks, i)
					if !IsTypeCast(name, parentIsCastLike) && IsValidCall(name) {
						fe.calls = append(fe.calls, callEvent{
							caller: caller,
							site:   CallSite{Function: name, Line: t.Line, Column: t.Col},
						})
					}
				}
				i = next
				continue
			}
			i = next

		default:
			i++
		}
	}
	return fe
}

// extractCalleeExpr consumes an identifier chain starting at i: a plain
// identifier, a field_expression ("a.b", "a->b"), or a qualified_identifier
// ("A::b"). Per §4.D all three are represented as their components joined
// with "::". next is the index of the first token after the chain.
func extractCalleeExpr(toks []Token, i int) (name string, next int) {
	if toks[i].Kind != TokIdent {
		return toks[i].Text, i + 1
	}
	parts := []string{toks[i].Text}
	j := i + 1
	for j+1 < len(toks) {
		sep := toks[j]
		if sep.Kind != TokPunct {
			break
		}
		if (sep.Text == "::" || sep.Text == "." || sep.Text == "->") && toks[j+1].Kind == TokIdent {
			parts = append(parts, toks[j+1].Text)
			j += 2
			continue
		}
		break
	}
	return strings.Join(parts, "::"), j
}

// matchParen returns the index of the ')' matching the '(' at openIdx, or
// -1 if unbalanced within the remaining tokens.
func matchParen(toks []Token, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(toks); i++ {
		switch toks[i].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var trailingQualifierKeywords = map[string]bool{
	"const": true, "noexcept": true, "override": true, "final": true, "mutable": true,
}

// skipQualifiers advances past the tokens that can legally sit between a
// function signature's closing ')' and its body/terminator: cv-qualifiers,
// a throw-specification, a trailing return type ("-> T"), and a
// constructor's member-initializer list (": a(1), b(2)"). It returns the
// index of the first token that is expected to be "{" (a definition) or
// ";"/something else (not a definition).
func skipQualifiers(toks []Token, idx int) int {
	n := len(toks)
	for idx < n {
		t := toks[idx]
		switch {
		case t.Kind == TokIdent && trailingQualifierKeywords[t.Text]:
			idx++
		case t.Kind == TokIdent && t.Text == "throw":
			idx++
			if idx < n && toks[idx].Text == "(" {
				end := matchParen(toks, idx)
				if end < 0 {
					return idx
				}
				idx = end + 1
			}
		case t.Kind == TokPunct && t.Text == "->":
			idx++
			for idx < n && toks[idx].Text != "{" && toks[idx].Text != ";" {
				idx++
			}
		case t.Kind == TokPunct && t.Text == ":":
			idx++
			depth := 0
			for idx < n {
				switch toks[idx].Text {
				case "(":
					depth++
				case ")":
					depth--
				case "{":
					if depth == 0 {
						return idx
					}
				}
				idx++
			}
			return idx
		default:
			return idx
		}
	}
	return idx
}

// precededByCastParen reports whether the identifier chain at callIdx is
// immediately preceded by a parenthesized single identifier, i.e. the
// C-style cast shape "(Type)callee(args)". This is the one piece of structural
// parent-context the hand-rolled scanner can recover; see DESIGN.md.
//
// A control-flow guard ("if (cond) call(...)", "while (cond) call(...)",
// "switch (x) call(...)", a single-identifier "catch (e) call(...)") has
// the identical "(" IDENT ")" shape immediately before the call, but is not
// a cast: the parenthesized identifier there is the guard's condition, not
// a type. Excluded by checking that the token preceding the opening "(" is
// not itself a control-flow keyword.
func precededByCastParen(toks []Token, callIdx int) bool {
	if callIdx < 3 {
		return false
	}
	// toks[callIdx-1] should be ")" closing a single-identifier group
	// "(" IDENT ")" immediately before the call/identifier at callIdx.
	if toks[callIdx-1].Text != ")" {
		return false
	}
	if toks[callIdx-2].Kind != TokIdent {
		return false
	}
	if toks[callIdx-3].Text != "(" {
		return false
	}
	if callIdx >= 4 {
		before := toks[callIdx-4]
		if before.Kind == TokIdent && cxxKeywords[before.Text] {
			return false
		}
	}
	return true
}
