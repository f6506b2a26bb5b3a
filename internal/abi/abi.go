// Package abi describes the target data model: builtin type sizes, pointer
// width and enum width. Sizes follow MSVC (long is 4 bytes).
package abi

import "strings"

// Model is the data model layout is computed under.
type Model struct {
	PointerSize    int64
	EnumSize       int64
	LongDoubleSize int64
}

// Default is a 32-bit MSVC target.
func Default() Model {
	return Model{PointerSize: 4, EnumSize: 4, LongDoubleSize: 8}
}

type primitive struct {
	size       int64
	pointer    bool // size is the pointer width
	longDouble bool
}

var primitives = map[string]primitive{
	"void":  {size: 0},
	"bool":  {size: 1},
	"char":  {size: 1},
	"float": {size: 4},

	"signed char":   {size: 1},
	"unsigned char": {size: 1},
	"char8_t":       {size: 1},
	"wchar_t":       {size: 2},
	"char16_t":      {size: 2},
	"char32_t":      {size: 4},

	"short":              {size: 2},
	"signed short":       {size: 2},
	"short int":          {size: 2},
	"unsigned short":     {size: 2},
	"unsigned short int": {size: 2},
	"int":                {size: 4},
	"signed":             {size: 4},
	"signed int":         {size: 4},
	"unsigned":           {size: 4},
	"unsigned int":       {size: 4},
	"long":               {size: 4},
	"long int":           {size: 4},
	"signed long":        {size: 4},
	"unsigned long":      {size: 4},
	"unsigned long int":  {size: 4},
	"long long":          {size: 8},
	"signed long long":   {size: 8},
	"unsigned long long": {size: 8},

	"__int8":             {size: 1},
	"unsigned __int8":    {size: 1},
	"__int16":            {size: 2},
	"unsigned __int16":   {size: 2},
	"__int32":            {size: 4},
	"unsigned __int32":   {size: 4},
	"__int64":            {size: 8},
	"unsigned __int64":   {size: 8},
	"__int128":           {size: 16},
	"unsigned __int128":  {size: 16},
	"int8_t":             {size: 1},
	"uint8_t":            {size: 1},
	"int16_t":            {size: 2},
	"uint16_t":           {size: 2},
	"int32_t":            {size: 4},
	"uint32_t":           {size: 4},
	"int64_t":            {size: 8},
	"uint64_t":           {size: 8},
	"_Float16":           {size: 2},
	"double":             {size: 8},
	"long double":        {longDouble: true},
	"__float128":         {size: 16},
	"size_t":             {pointer: true},
	"ssize_t":            {pointer: true},
	"ptrdiff_t":          {pointer: true},
	"intptr_t":           {pointer: true},
	"uintptr_t":          {pointer: true},
	"__m64":              {size: 8},
	"__m128":             {size: 16},
	"__m128i":            {size: 16},
	"__m128d":            {size: 16},
	"__m256":             {size: 32},
	"__m256i":            {size: 32},

	// decompiler types
	"_BYTE":    {size: 1},
	"_WORD":    {size: 2},
	"_DWORD":   {size: 4},
	"_QWORD":   {size: 8},
	"_OWORD":   {size: 16},
	"_TBYTE":   {size: 10},
	"_BOOL1":   {size: 1},
	"_BOOL2":   {size: 2},
	"_BOOL4":   {size: 4},
	"_BOOL8":   {size: 8},
	"_UNKNOWN": {size: 1},
	"BYTE":     {size: 1},
	"WORD":     {size: 2},
	"DWORD":    {size: 4},
	"QWORD":    {size: 8},
	"BOOL":     {size: 4},
	"HRESULT":  {size: 4},
}

// IsPrimitive reports whether name is a builtin or decompiler-defined type.
// Numeric template value arguments count as primitive.
func IsPrimitive(name string) bool {
	if _, ok := primitives[name]; ok {
		return true
	}
	return isNumber(name)
}

// PrimitiveSize returns the size in bytes of a builtin type.
func (m Model) PrimitiveSize(name string) (int64, bool) {
	p, ok := primitives[name]
	if !ok {
		return 0, false
	}
	switch {
	case p.pointer:
		return m.PointerSize, true
	case p.longDouble:
		return m.LongDoubleSize, true
	}
	return p.size, true
}

// Align returns the natural alignment of a scalar of the given size: the size
// itself for powers of two up to 16, else the largest power of two below it.
func Align(size int64) int64 {
	switch {
	case size <= 1:
		return 1
	case size >= 16:
		return 16
	}
	a := int64(1)
	for a*2 <= size {
		a *= 2
	}
	return a
}

func isNumber(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
