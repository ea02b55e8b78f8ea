// Package impact implements the Impact Analyzer (component F): given a
// call graph and a set of vulnerable library names, it derives the direct
// and transitive sets of affected functions and a shortest witness chain
// for each one.
package impact

import (
	"sort"
	"strings"

	"github.com/cppvulnimpact/engine/internal/cxxscan"
)

// Result is the output of Analyze (§3's "Impact Analysis").
type Result struct {
	DirectlyVulnerable   []string            `json:"directly_vulnerable"`
	VulnerableFunctions  []string            `json:"vulnerable_functions"`
	IndirectlyVulnerable []string            `json:"indirectly_vulnerable"`
	VulnerableLibraries  []string            `json:"vulnerable_libraries"`
	VulnerabilityChains  map[string][]string `json:"vulnerability_chains"`
}

// IsVulnLib reports whether callee's name is a case-insensitive substring
// match for one of the vulnerable library names in libs. Deliberately
// loose: C/C++ external symbols frequently carry a library name as a
// prefix (openssl_..., curl_easy_...).
func IsVulnLib(callee string, libs []string) bool {
	lc := strings.ToLower(callee)
	for _, v := range libs {
		if v == "" {
			continue
		}
		if strings.Contains(lc, strings.ToLower(v)) {
			return true
		}
	}
	return false
}

// Analyze computes the full Impact Analysis over graph for the vulnerable
// library set libs.
func Analyze(graph *cxxscan.CallGraph, libs []string) Result {
	direct := directlyVulnerable(graph, libs)
	vulnerable := transitiveClosure(graph, direct)

	indirect := make(map[string]bool, len(vulnerable))
	for f := range vulnerable {
		if !direct[f] {
			indirect[f] = true
		}
	}

	chains := make(map[string][]string, len(vulnerable))
	for f := range vulnerable {
		chains[f] = witnessChain(graph, f, libs)
	}

	return Result{
		DirectlyVulnerable:   sortedKeys(direct),
		VulnerableFunctions:  sortedKeys(vulnerable),
		IndirectlyVulnerable: sortedKeys(indirect),
		VulnerableLibraries:  sortedStrings(libs),
		VulnerabilityChains:  chains,
	}
}

func directlyVulnerable(graph *cxxscan.CallGraph, libs []string) map[string]bool {
	direct := make(map[string]bool)
	for name, info := range graph.Functions {
		for _, site := range info.Calls {
			if IsVulnLib(site.Function, libs) {
				direct[name] = true
				break
			}
		}
	}
	return direct
}

// transitiveClosure computes the least fixed point: a function g joins the
// vulnerable set if any of its call-site callees is already in the set.
// Implemented as repeated worklist passes over the graph's own functions
// until no pass adds a member.
func transitiveClosure(graph *cxxscan.CallGraph, direct map[string]bool) map[string]bool {
	vulnerable := make(map[string]bool, len(direct))
	for f := range direct {
		vulnerable[f] = true
	}

	for {
		changed := false
		for name, callees := range graph.Global {
			if vulnerable[name] {
				continue
			}
			for _, callee := range callees {
				if vulnerable[callee] {
					vulnerable[name] = true
					changed = true
					break
				}
			}
		}
		if !changed {
			break
		}
	}
	return vulnerable
}

// witnessChain runs a breadth-first search over the call relation starting
// at f, returning the shortest path (inclusive of f) ending at an
// identifier satisfying IsVulnLib. Ties in path length are broken by
// call-site traversal order, which BFS over the first-encounter-ordered
// edge list already guarantees.
func witnessChain(graph *cxxscan.CallGraph, f string, libs []string) []string {
	type queued struct {
		node string
		path []string
	}

	visited := map[string]bool{f: true}
	queue := []queued{{node: f, path: []string{f}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, callee := range graph.Global[cur.node] {
			if IsVulnLib(callee, libs) {
				chain := make([]string, len(cur.path)+1)
				copy(chain, cur.path)
				chain[len(cur.path)] = callee
				return chain
			}
			if _, inGraph := graph.Functions[callee]; !inGraph {
				continue
			}
			if visited[callee] {
				continue
			}
			visited[callee] = true
			nextPath := make([]string, len(cur.path)+1)
			copy(nextPath, cur.path)
			nextPath[len(cur.path)] = callee
			queue = append(queue, queued{node: callee, path: nextPath})
		}
	}
	return nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStrings(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}
