// Package fqn splits and joins C++ qualified names ("A::B<C::D>::E") without
// being confused by scope operators inside template argument lists.
package fqn

import "strings"

// Separator is the C++ scope operator.
const Separator = "::"

// Split returns the top-level scope segments of name. Separators nested in
// <>, () or [] do not split.
// Examples:
//   - "A::B::C"            -> [A B C]
//   - "Map<K::X,V>::Node"  -> [Map<K::X,V> Node]
func Split(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(name) && name[i+1] == ':' {
				parts = append(parts, strings.TrimSpace(name[start:i]))
				i++
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(name[start:]))
	return parts
}

// Join concatenates non-empty segments with the scope operator.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, Separator)
}

// Scope splits name into its enclosing scope segments and the final segment.
func Scope(name string) (namespace []string, base string) {
	parts := Split(name)
	if len(parts) == 0 {
		return nil, ""
	}
	if len(parts) == 1 {
		return nil, parts[0]
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}

// StripTemplates removes every <...> span, at any depth.
func StripTemplates(name string) string {
	if !strings.Contains(name, "<") {
		return name
	}
	var sb strings.Builder
	depth := 0
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			} else {
				sb.WriteByte(c)
			}
		default:
			if depth == 0 {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// Parent returns the scope enclosing name, or "" for a top-level name.
func Parent(name string) string {
	ns, _ := Scope(name)
	return Join(ns...)
}
