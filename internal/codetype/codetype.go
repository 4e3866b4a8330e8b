// Package codetype classifies source lines by structural role (function,
// class, import, doc-comment, ...) to drive C8's smart snippet line ranking.
// It prefers a tree-sitter parse when a grammar for the file's language is
// registered, falling back to a conservative regex heuristic otherwise.
package codetype

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/rishitank/context-engine-sub000/internal/logging"
)

// Kind is a line's structural role, ordered from lowest to highest snippet
// selection priority.
type Kind int

const (
	KindOther Kind = iota
	KindDocComment
	KindImport
	KindExport
	KindType
	KindInterface
	KindClass
	KindFunction
)

// Priority returns a lower-is-better rank for snippet line selection, per
// spec §4.8's function/class/interface/type/export/imports/doc-comment/other
// ordering.
func (k Kind) Priority() int {
	switch k {
	case KindFunction:
		return 0
	case KindClass:
		return 1
	case KindInterface:
		return 2
	case KindType:
		return 3
	case KindExport:
		return 4
	case KindImport:
		return 5
	case KindDocComment:
		return 6
	default:
		return 7
	}
}

// languageByExt maps language extensions to a tree-sitter grammar, when a
// structural parse is worth the cost over the regex fallback.
var languageByExt = map[string]*sitter.Language{
	".go":  golang.GetLanguage(),
	".py":  python.GetLanguage(),
	".rs":  rust.GetLanguage(),
	".js":  javascript.GetLanguage(),
	".jsx": javascript.GetLanguage(),
	".ts":  typescript.GetLanguage(),
	".tsx": typescript.GetLanguage(),
}

var declNodeKinds = map[string]Kind{
	"function_declaration":    KindFunction,
	"method_declaration":      KindFunction,
	"func_literal":            KindFunction,
	"function_definition":     KindFunction,
	"function_item":           KindFunction,
	"function_declaration_js": KindFunction,
	"class_declaration":       KindClass,
	"class_definition":        KindClass,
	"struct_item":             KindClass,
	"type_declaration":        KindType,
	"type_spec":                KindType,
	"interface_declaration":   KindInterface,
	"trait_item":              KindInterface,
	"import_declaration":     KindImport,
	"import_spec":             KindImport,
	"import_statement":       KindImport,
	"import_from_statement":  KindImport,
	"use_declaration":        KindImport,
	"comment":                KindDocComment,
}

// ClassifyLines returns a Kind per 1-based line of content, using a
// tree-sitter structural parse when the extension has a registered grammar.
func ClassifyLines(path string, content []byte) []Kind {
	ext := strings.ToLower(filepath.Ext(path))
	lines := strings.Split(string(content), "\n")
	kinds := make([]Kind, len(lines))
	for i := range kinds {
		kinds[i] = KindOther
	}

	lang, ok := languageByExt[ext]
	if !ok {
		return classifyByRegex(lines)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		logging.RetrievalWarn("codetype: tree-sitter parse failed for %s, falling back to regex: %v", path, err)
		return classifyByRegex(lines)
	}
	defer tree.Close()

	markNode(tree.RootNode(), kinds)

	for i, l := range lines {
		trimmed := strings.TrimSpace(l)
		if kinds[i] == KindOther && (strings.HasPrefix(trimmed, "export ") || strings.HasPrefix(trimmed, "pub ")) {
			kinds[i] = KindExport
		}
	}
	return kinds
}

func markNode(n *sitter.Node, kinds []Kind) {
	if n == nil {
		return
	}
	if kind, ok := declNodeKinds[n.Type()]; ok {
		start := int(n.StartPoint().Row)
		end := int(n.EndPoint().Row)
		for i := start; i <= end && i < len(kinds); i++ {
			if kinds[i].Priority() > kind.Priority() {
				kinds[i] = kind
			}
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		markNode(n.Child(i), kinds)
	}
}

var (
	reFunc      = regexp.MustCompile(`^\s*(func |def |fn |function )`)
	reClass     = regexp.MustCompile(`^\s*(class |struct |type .* struct)`)
	reInterface = regexp.MustCompile(`^\s*(interface |trait )`)
	reType      = regexp.MustCompile(`^\s*type `)
	reExport    = regexp.MustCompile(`^\s*(export |pub )`)
	reImport    = regexp.MustCompile(`^\s*(import |from .* import|use )`)
	reDoc       = regexp.MustCompile(`^\s*(//|#|/\*|\*|""")`)
)

// classifyByRegex is the fallback used for languages with no registered
// tree-sitter grammar, or when a parse fails.
func classifyByRegex(lines []string) []Kind {
	kinds := make([]Kind, len(lines))
	for i, l := range lines {
		switch {
		case reFunc.MatchString(l):
			kinds[i] = KindFunction
		case reInterface.MatchString(l):
			kinds[i] = KindInterface
		case reClass.MatchString(l):
			kinds[i] = KindClass
		case reType.MatchString(l):
			kinds[i] = KindType
		case reExport.MatchString(l):
			kinds[i] = KindExport
		case reImport.MatchString(l):
			kinds[i] = KindImport
		case reDoc.MatchString(l):
			kinds[i] = KindDocComment
		default:
			kinds[i] = KindOther
		}
	}
	return kinds
}
