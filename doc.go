// Package symdex is a symbol index for Kotlin and Java tooling. It answers
// lookups such as "find class X", "find extensions for type Y" and
// "complete prefix Z" over three sources: project source files, compiled
// dependency archives (jar, aar and class directories) and a standard
// library snapshot.
//
// # Sources
//
//  1. Project files: parsed with tree-sitter into symbol tables (or by a
//     Risor extraction script, see [WithScript]) and published per file.
//     Re-publishing a file replaces its package and extension
//     contributions as a unit.
//
//  2. Classpath: each archive is read entry by entry and every classfile
//     is decoded by a hand-written parser. Archives are scanned in
//     parallel; an archive is never scanned twice in a Session.
//
//  3. Stdlib: a JSON snapshot in either the flat IndexData shape or the
//     class-centric StdlibIndexData shape, detected automatically.
//
// # Usage
//
//	s, err := symdex.New(symdex.WithStore(".symdex.db"))
//	if err != nil { ... }
//	defer s.Close()
//
//	ctx := context.Background()
//	s.UseMinimalStdlib()
//	_, err = s.LoadClasspath(ctx, []string{"libs/core.jar"})
//	_, err = s.IndexSources(ctx, []string{"src/main/kotlin"})
//
//	idx := s.Index()
//	exts := idx.FindExtensions("String", []string{"CharSequence"}, false)
//	completions := idx.FindVisibleFrom("src/main/kotlin/App.kt", "pri", 20)
//
// # Incremental updates
//
// [Session.AnalyzeFile] records which symbols a file depends on and
// returns the files to re-analyze when a file's public shape changes.
// With [WithStore], archive symbols and source symbol tables are cached in
// SQLite keyed by content hash, so unchanged inputs are not parsed again
// across runs.
package symdex
