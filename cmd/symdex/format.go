package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFQNAME\tDECLARATION\tLOCATION")
	for _, s := range syms {
		loc := s.File
		if loc != "" && s.StartLine > 0 {
			loc = fmt.Sprintf("%s:%d", loc, s.StartLine)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Kind, s.FqName, s.Declaration, loc)
	}
	tw.Flush()
}

// formatIndexReportText formats the index command's result.
func formatIndexReportText(w io.Writer, r IndexReport) {
	fmt.Fprintln(w, "Classpath")
	fmt.Fprintf(w, "  archives: %d (cached %d, scanned %d, failed %d, pruned %d)\n",
		r.Classpath.Archives, r.Classpath.Cached, r.Classpath.Scanned, r.Classpath.Failed, r.Classpath.Pruned)
	fmt.Fprintf(w, "  symbols added: %d\n", r.Classpath.Symbols)
	fmt.Fprintln(w, "Sources")
	fmt.Fprintf(w, "  files: %d (parsed %d, cached %d, unchanged %d, removed %d)\n",
		r.Sources.Files, r.Sources.Parsed, r.Sources.Cached, r.Sources.Unchanged, r.Sources.Removed)
	if len(r.Sources.Invalidated) > 0 {
		fmt.Fprintln(w, "  invalidated:")
		for _, f := range r.Sources.Invalidated {
			fmt.Fprintf(w, "    %s\n", f)
		}
	}
	fmt.Fprintln(w, "Totals")
	fmt.Fprintf(w, "  files: %d, file symbols: %d\n", r.Totals.Files, r.Totals.FileSymbols)
	fmt.Fprintf(w, "  classpath symbols: %d from %d archives\n", r.Totals.Classpath, r.Totals.Archives)
	fmt.Fprintf(w, "  stdlib symbols: %d\n", r.Totals.Stdlib)
	fmt.Fprintf(w, "  dependency edges: %d\n", r.Totals.Dependencies)
}

// writeResultText dispatches to the text formatter for the result type.
func writeResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLISymbol:
		formatSymbolsText(w, []CLISymbol{v})
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case IndexReport:
		formatIndexReportText(w, v)
	case nil:
		// No output for nil results (e.g., fqname with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}

	// Pagination footer.
	if result.TotalCount != nil {
		count := *result.TotalCount
		shown := resultLen(result.Results)
		if shown < count {
			fmt.Fprintf(w, "\nShowing %d of %d results\n", shown, count)
		}
	}
	return nil
}

// resultLen returns the length of a result slice, or 1 for a single value.
func resultLen(v any) int {
	switch r := v.(type) {
	case []CLISymbol:
		return len(r)
	case []string:
		return len(r)
	case nil:
		return 0
	default:
		return 1
	}
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, flagFormat, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	if format == "text" {
		return writeResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
