package lang

import (
	"path/filepath"
	"strings"
)

// Language identifies a tree-sitter grammar used to scan function bodies.
type Language string

const (
	C   Language = "c"
	CPP Language = "cpp"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{C, CPP}
}

// LanguageSpec defines the tree-sitter node types body scanning looks at.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string
	// FunctionNodeTypes are definitions whose bodies hold local declarations.
	FunctionNodeTypes []string
	// VariableNodeTypes are local declaration statements.
	VariableNodeTypes []string
	// QualifierNodeTypes precede the type of a declaration (const, volatile).
	QualifierNodeTypes []string
	// SkipDeclaratorTypes are declarators that do not introduce an object
	// (local prototypes).
	SkipDeclaratorTypes []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".cpp").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// ForFile picks the grammar for a corpus file. Decompiler dumps carry
// arbitrary extensions (.txt, .idc); they are C++.
func ForFile(path string) Language {
	if l, ok := LanguageForExtension(strings.ToLower(filepath.Ext(path))); ok {
		return l
	}
	return CPP
}
