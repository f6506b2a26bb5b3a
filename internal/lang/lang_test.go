package lang

import "testing"

func TestForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		lang Language
	}{
		{".cpp", CPP},
		{".h", CPP},
		{".hpp", CPP},
		{".cc", CPP},
		{".c", C},
	}
	for _, tt := range tests {
		spec := ForExtension(tt.ext)
		if spec == nil {
			t.Errorf("ForExtension(%q) = nil, want %s", tt.ext, tt.lang)
			continue
		}
		if spec.Language != tt.lang {
			t.Errorf("ForExtension(%q).Language = %s, want %s", tt.ext, spec.Language, tt.lang)
		}
	}
}

func TestForLanguage(t *testing.T) {
	for _, lang := range AllLanguages() {
		spec := ForLanguage(lang)
		if spec == nil {
			t.Errorf("ForLanguage(%s) = nil", lang)
		}
	}
}

func TestUnknownExtension(t *testing.T) {
	if spec := ForExtension(".xyz"); spec != nil {
		t.Errorf("ForExtension(.xyz) should be nil, got %v", spec)
	}
}

func TestForFileDefaultsToCPP(t *testing.T) {
	tests := map[string]Language{
		"dump/game.c":      C,
		"dump/GAME.CPP":    CPP,
		"dump/types.txt":   CPP,
		"dump/script.idc":  CPP,
		"dump/no_ext_file": CPP,
	}
	for path, want := range tests {
		if got := ForFile(path); got != want {
			t.Errorf("ForFile(%q) = %s, want %s", path, got, want)
		}
	}
}
