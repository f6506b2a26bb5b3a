package fqn

import (
	"reflect"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"A", []string{"A"}},
		{"A::B::C", []string{"A", "B", "C"}},
		{"Map<K::X,V>::Node", []string{"Map<K::X,V>", "Node"}},
		{"F<void (__cdecl*)(A::B)>::G", []string{"F<void (__cdecl*)(A::B)>", "G"}},
		{"", nil},
	}
	for _, tt := range tests {
		got := Split(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Split(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScopeAndParent(t *testing.T) {
	ns, base := Scope("Archive::SetVersionRow_vtbl")
	if base != "SetVersionRow_vtbl" || len(ns) != 1 || ns[0] != "Archive" {
		t.Errorf("Scope: got %v %q", ns, base)
	}
	if p := Parent("A::B::C"); p != "A::B" {
		t.Errorf("Parent: expected A::B, got %q", p)
	}
	if p := Parent("Top"); p != "" {
		t.Errorf("Parent: expected empty, got %q", p)
	}
}

func TestStripTemplates(t *testing.T) {
	if got := StripTemplates("A<B<C>,D>::E<F>"); got != "A::E" {
		t.Errorf("expected A::E, got %q", got)
	}
	if got := StripTemplates("Plain"); got != "Plain" {
		t.Errorf("expected Plain, got %q", got)
	}
}

func TestJoinSkipsEmpty(t *testing.T) {
	if got := Join("", "A", "", "B"); got != "A::B" {
		t.Errorf("expected A::B, got %q", got)
	}
}
