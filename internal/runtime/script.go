package runtime

import (
	"context"
	"fmt"

	"github.com/jward/symdex/internal/index"
)

// ExtractScript runs a user extraction script over one source file and
// returns the symbol table it declared. The script sees the globals
// file_path, source and language next to the tree-sitter helpers, and
// reports declarations through set_package, add_import and declare.
func (r *Runtime) ExtractScript(ctx context.Context, scriptPath, filePath string, src []byte) (index.SymbolTable, error) {
	code, err := r.LoadScript(scriptPath)
	if err != nil {
		return index.SymbolTable{}, err
	}
	return r.ExtractSource(ctx, code, filePath, src)
}

// ExtractSource is ExtractScript with the script given inline.
func (r *Runtime) ExtractSource(ctx context.Context, script, filePath string, src []byte) (index.SymbolTable, error) {
	lang, _ := LanguageForFile(filePath)
	b := newTableBuilder()
	globals := r.hostGlobals(newSourceStore(), map[string]any{
		"file_path":   filePath,
		"source":      string(src),
		"language":    lang,
		"set_package": makeSetPackageFn(b),
		"add_import":  makeAddImportFn(b),
		"declare":     makeDeclareFn(b),
	})
	if _, err := r.eval(ctx, script, filePath, globals); err != nil {
		return index.SymbolTable{}, err
	}
	if b.err != nil {
		return index.SymbolTable{}, fmt.Errorf("runtime: extract %s: %w", filePath, b.err)
	}
	return b.table(filePath), nil
}
