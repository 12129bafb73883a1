package main

import "github.com/jward/symdex"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLISymbol is a JSON-friendly symbol representation.
type CLISymbol struct {
	Name        string   `json:"name"`
	FqName      string   `json:"fq_name"`
	Kind        string   `json:"kind"`
	Package     string   `json:"package"`
	Container   string   `json:"container,omitempty"`
	Visibility  string   `json:"visibility"`
	Declaration string   `json:"declaration"`
	Signature   string   `json:"signature,omitempty"`
	ReturnType  string   `json:"return_type,omitempty"`
	Receiver    string   `json:"receiver,omitempty"`
	Supertypes  []string `json:"supertypes,omitempty"`
	File        string   `json:"file,omitempty"`
	StartLine   int      `json:"start_line,omitempty"`
	Deprecated  bool     `json:"deprecated,omitempty"`
	Deprecation string   `json:"deprecation,omitempty"`
}

// symbolToCLI converts an index symbol to a CLISymbol.
func symbolToCLI(s *symdex.Symbol) CLISymbol {
	out := CLISymbol{
		Name:        s.Name,
		FqName:      s.FqName,
		Kind:        string(s.Kind),
		Package:     s.PackageName,
		Container:   s.ContainingClass,
		Visibility:  string(s.Visibility),
		Declaration: s.DisplayString(),
		Signature:   s.Signature,
		ReturnType:  s.ReturnType,
		Receiver:    s.ReceiverType,
		Supertypes:  s.SuperTypes,
		File:        s.FilePath,
		Deprecated:  s.Deprecated,
		Deprecation: s.DeprecationMessage,
	}
	if s.Span != nil {
		out.StartLine = s.Span.StartLine
	}
	return out
}

func symbolsToCLI(syms []*symdex.Symbol) []CLISymbol {
	out := make([]CLISymbol, len(syms))
	for i, s := range syms {
		out[i] = symbolToCLI(s)
	}
	return out
}
