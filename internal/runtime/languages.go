package runtime

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/kotlin"
)

// language is one supported source language.
type language struct {
	name       string
	extensions []string
	grammar    func() *sitter.Language
}

var languages = []language{
	{name: "kotlin", extensions: []string{".kt", ".kts"}, grammar: kotlin.GetLanguage},
	{name: "java", extensions: []string{".java"}, grammar: java.GetLanguage},
}

// grammars is filled on first use; GetLanguage allocates.
var grammars = sync.OnceValue(func() map[string]*sitter.Language {
	m := make(map[string]*sitter.Language, len(languages))
	for _, l := range languages {
		m[l.name] = l.grammar()
	}
	return m
})

// LanguageForFile returns "kotlin" or "java" for a source path, matching the
// extension case-insensitively.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, l := range languages {
		for _, e := range l.extensions {
			if e == ext {
				return l.name, true
			}
		}
	}
	return "", false
}

// IsSourceFile reports whether path has a Kotlin or Java extension.
func IsSourceFile(path string) bool {
	_, ok := LanguageForFile(path)
	return ok
}

// ParserForLanguage returns the grammar for a name returned by
// LanguageForFile.
func ParserForLanguage(lang string) (*sitter.Language, bool) {
	g, ok := grammars()[lang]
	return g, ok
}
