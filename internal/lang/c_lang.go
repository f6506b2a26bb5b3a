package lang

func init() {
	Register(&LanguageSpec{
		Language:            C,
		FileExtensions:      []string{".c"},
		FunctionNodeTypes:   []string{"function_definition"},
		VariableNodeTypes:   []string{"declaration"},
		QualifierNodeTypes:  []string{"type_qualifier", "storage_class_specifier"},
		SkipDeclaratorTypes: []string{"function_declarator"},
	})
}
