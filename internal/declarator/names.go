package declarator

import (
	"strings"

	"github.com/DeusData/typerecon/internal/typestr"
)

// verdict is what a name rule concludes about the rightmost identifier.
type verdict uint8

const (
	undecided verdict = iota
	isName
	isType
)

// nameRule inspects the rightmost identifier (candidate) and the text before
// it (prefix).
type nameRule struct {
	name  string
	check func(candidate, prefix string) verdict
}

// nameRules run in order; the first decisive rule wins. A candidate no rule
// claims is the declarator name.
var nameRules = []nameRule{
	{"synthetic-member", knownMemberName},
	{"qualifier", qualifierWord},
	{"type-keyword", typeKeyword},
	{"reserved-prefix", reservedPrefix},
	{"scoped", scopedName},
	{"no-type-before", noTypeBefore},
}

// typeKeywords are builtin and decompiler-defined type names.
var typeKeywords = map[string]bool{
	"void": true, "bool": true, "char": true, "short": true, "int": true,
	"long": true, "float": true, "double": true, "signed": true, "unsigned": true,
	"wchar_t": true, "char16_t": true, "char32_t": true, "char8_t": true,
	"_BYTE": true, "_WORD": true, "_DWORD": true, "_QWORD": true, "_OWORD": true,
	"_TBYTE": true, "_BOOL1": true, "_BOOL2": true, "_BOOL4": true, "_BOOL8": true,
	"_UNKNOWN": true, "BYTE": true, "WORD": true, "DWORD": true, "QWORD": true,
	"BOOL": true, "HRESULT": true, "size_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
}

// qualifierWords may precede a type without being one.
var qualifierWords = map[string]bool{
	"const": true, "volatile": true, "struct": true, "union": true,
	"enum": true, "class": true, "typename": true, "__unaligned": true,
}

// IsTypeKeyword reports whether word is a builtin or decompiler type name.
func IsTypeKeyword(word string) bool { return typeKeywords[word] }

func knownMemberName(candidate, _ string) verdict {
	switch {
	case candidate == "__vftable", candidate == "__vfptr",
		strings.HasPrefix(candidate, "__padding"), strings.HasPrefix(candidate, "__param"):
		return isName
	}
	return undecided
}

func qualifierWord(candidate, _ string) verdict {
	if qualifierWords[candidate] {
		return isType
	}
	return undecided
}

func typeKeyword(candidate, _ string) verdict {
	if typeKeywords[candidate] {
		return isType
	}
	return undecided
}

func reservedPrefix(candidate, _ string) verdict {
	if strings.HasPrefix(candidate, "__") {
		return isType
	}
	return undecided
}

func scopedName(candidate, _ string) verdict {
	if strings.Contains(candidate, "::") {
		return isType
	}
	return undecided
}

func noTypeBefore(_, prefix string) verdict {
	for _, f := range strings.Fields(strings.NewReplacer("*", " ", "&", " ").Replace(prefix)) {
		if !qualifierWords[f] {
			return undecided
		}
	}
	return isType
}

// classify runs the rule chain.
func classify(candidate, prefix string) verdict {
	for _, r := range nameRules {
		if v := r.check(candidate, prefix); v != undecided {
			return v
		}
	}
	return isName
}

// splitDeclarator separates "Type name" into its parts. named is false when
// the text holds only a type; typeText is then the whole input.
func splitDeclarator(s string) (typeText, name string, named bool) {
	s = strings.TrimSpace(s)
	end := len(s)
	if end == 0 || !typestr.IsIdentChar(s[end-1]) {
		return s, "", false
	}
	start := end
	for start > 0 {
		c := s[start-1]
		if typestr.IsIdentChar(c) {
			start--
			continue
		}
		if c == ':' && start >= 2 && s[start-2] == ':' {
			start -= 2
			continue
		}
		break
	}
	candidate := s[start:end]
	prefix := s[:start]
	if classify(candidate, prefix) == isType {
		return s, "", false
	}
	return strings.TrimSpace(prefix), candidate, true
}
