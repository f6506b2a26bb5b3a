package lang

func init() {
	Register(&LanguageSpec{
		Language:          CPP,
		FileExtensions:    []string{".cpp", ".h", ".hpp", ".cc", ".cxx", ".hxx", ".hh"},
		FunctionNodeTypes: []string{"function_definition", "lambda_expression"},
		VariableNodeTypes: []string{"declaration"},
		QualifierNodeTypes: []string{
			"type_qualifier",
			"storage_class_specifier",
		},
		SkipDeclaratorTypes: []string{"function_declarator"},
	})
}
