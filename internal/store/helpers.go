package store

import (
	"encoding/json"
	"strings"

	"github.com/jward/symdex/internal/index"
)

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// stringsToArgs converts []string to []any for use with database/sql.
func stringsToArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

// marshalEntry converts a symbol to the JSON text stored per row.
func marshalEntry(sym *index.Symbol) (string, error) {
	b, err := json.Marshal(index.EntryFromSymbol(sym))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalEntry converts stored JSON text back to a symbol.
func unmarshalEntry(s string) (*index.Symbol, error) {
	var e index.IndexEntry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, err
	}
	return e.ToSymbol(), nil
}
