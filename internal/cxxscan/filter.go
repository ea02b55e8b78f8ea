package cxxscan

import (
	"strings"
	"unicode"
)

// Package cxxscan's Identifier Filter (component E): two pure predicates
// over a candidate callee string, reproduced bit-for-bit from §4.E since
// the spec calls out that the exact cascade materially affects the
// resulting call graph.

var cxxKeywords = map[string]bool{
	// primitive types
	"int": true, "char": true, "float": true, "double": true, "void": true,
	"bool": true, "short": true, "long": true, "unsigned": true, "signed": true,
	"wchar_t": true, "char16_t": true, "char32_t": true, "char8_t": true,
	// control flow
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "default": true, "break": true,
	"continue": true, "return": true, "goto": true,
	// storage-class / qualifiers / declarations
	"static": true, "extern": true, "register": true, "mutable": true,
	"thread_local": true, "typedef": true, "const": true, "volatile": true,
	"inline": true, "constexpr": true, "consteval": true, "constinit": true,
	"friend": true, "virtual": true, "explicit": true, "public": true,
	"private": true, "protected": true, "class": true, "struct": true,
	"union": true, "enum": true, "namespace": true, "using": true,
	"template": true, "typename": true, "auto": true, "decltype": true,
	"noexcept": true, "override": true, "final": true, "asm": true,
	"export": true, "operator": true, "sizeof": true,
	// literals and special identifiers
	"true": true, "false": true, "nullptr": true, "this": true,
	"new": true, "delete": true, "throw": true, "try": true, "catch": true,
}

var builtinCastTypeNames = map[string]bool{
	"String": true, "Vector": true, "List": true, "Map": true,
	"Set": true, "Array": true, "Pair": true, "Tuple": true,
}

var commonCLibraryFunctions = map[string]bool{
	"memset": true, "memcpy": true, "malloc": true, "free": true,
	"printf": true, "scanf": true, "strlen": true, "strcpy": true,
	"strcmp": true, "fopen": true, "fclose": true, "fread": true,
	"deflate": true, "inflate": true, "accept": true, "bind": true,
	"connect": true, "listen": true,
}

var verbPrefixes = map[string]bool{
	"get": true, "set": true, "is": true, "has": true, "can": true,
	"do": true, "should": true, "will": true, "create": true, "init": true,
	"start": true, "stop": true, "open": true, "close": true,
	"read": true, "write": true, "parse": true, "handle": true,
	"process": true, "fetch": true, "load": true, "save": true,
	"update": true, "delete": true, "insert": true, "query": true,
	"send": true, "receive": true, "connect": true, "disconnect": true,
	"bind": true,
}

// IsTypeCast reports whether name is, or looks like, a type-cast target
// rather than a function call. parentIsCastLike carries the one piece of
// structural context the hand-rolled scanner can recover without a real
// parent link: whether the call-shaped expression is immediately preceded
// by a parenthesized identifier acting as a C-style cast, e.g. "(Foo)bar(x)".
// See DESIGN.md's "Open Question resolutions" for why a full parent-type
// lookup (cast_expression / type_descriptor / sized_type_specifier, as the
// spec's source names them) isn't available here.
func IsTypeCast(name string, parentIsCastLike bool) bool {
	if parentIsCastLike {
		return true
	}
	return looksLikeType(name)
}

func looksLikeType(name string) bool {
	if name == "" {
		return false
	}
	first := rune(name[0])
	if !unicode.IsUpper(first) {
		return false
	}
	if strings.Contains(name, "::") || strings.Contains(name, "_") {
		return false
	}
	if builtinCastTypeNames[name] {
		return true
	}
	if len(name) >= 12 {
		return false
	}
	for _, r := range name[1:] {
		if unicode.IsLower(r) {
			return false
		}
	}
	return true
}

// IsValidCall reports whether name should be treated as a function call
// candidate, per the decision cascade in §4.E.
func IsValidCall(name string) bool {
	if len(name) <= 2 {
		return false
	}
	lower := strings.ToLower(name)
	if cxxKeywords[lower] {
		return false
	}
	if isAllUpper(name) && !strings.Contains(name, "_") {
		return false
	}
	if strings.Contains(name, "::") {
		return true
	}
	if strings.Contains(name, "_") {
		return !isAllUpper(name)
	}
	first := rune(name[0])
	if unicode.IsUpper(first) {
		return true
	}
	if unicode.IsLower(first) {
		return validLowercaseStart(name)
	}
	return true
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// lowerToUpperTransitions returns the indices i (0-based index of the
// uppercase rune) at which s transitions from a lowercase letter at i-1 to
// an uppercase letter at i.
func lowerToUpperTransitions(s string) []int {
	runes := []rune(s)
	var transitions []int
	for i := 1; i < len(runes); i++ {
		if unicode.IsLower(runes[i-1]) && unicode.IsUpper(runes[i]) {
			transitions = append(transitions, i)
		}
	}
	return transitions
}

func validLowercaseStart(name string) bool {
	if !hasUpper(name) {
		if len(name) >= 15 || hasDigit(name) {
			return true
		}
		return commonCLibraryFunctions[name]
	}

	transitions := lowerToUpperTransitions(name)
	switch {
	case len(transitions) >= 2:
		return true
	case len(transitions) == 1:
		i := transitions[0]
		if float64(i)/float64(len(name)) >= 0.35 {
			return true
		}
		prefix := strings.ToLower(name[:i])
		return verbPrefixes[prefix]
	default:
		return true
	}
}
