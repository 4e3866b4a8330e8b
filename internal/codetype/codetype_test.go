package codetype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyLinesGoFunctionAndImport(t *testing.T) {
	src := `package main

import "fmt"

// Greet says hello.
func Greet(name string) string {
	return "hello " + name
}
`
	kinds := ClassifyLines("main.go", []byte(src))
	require.Len(t, kinds, 9)
	require.Equal(t, KindImport, kinds[2])
	require.Equal(t, KindFunction, kinds[5])
}

func TestClassifyLinesFallsBackToRegexForUnknownExtension(t *testing.T) {
	src := "def foo():\n    pass\n"
	kinds := ClassifyLines("script.unknownlang", []byte(src))
	require.Len(t, kinds, 2)
	require.Equal(t, KindFunction, kinds[0])
}

func TestPriorityOrdering(t *testing.T) {
	require.True(t, KindFunction.Priority() < KindClass.Priority())
	require.True(t, KindClass.Priority() < KindInterface.Priority())
	require.True(t, KindImport.Priority() < KindOther.Priority())
}
