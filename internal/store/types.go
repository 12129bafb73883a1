package store

import (
	"time"

	"github.com/jward/symdex/internal/index"
)

// Archive is one cached dependency input (jar, aar or class directory).
type Archive struct {
	ID          int64
	Path        string
	Hash        string
	LastIndexed time.Time
	SymbolCount int
}

// ArchiveRecord is a scan result waiting to be committed.
type ArchiveRecord struct {
	Path    string
	Hash    string
	Symbols []*index.Symbol
}

// SourceFile is a cached parse of one project source file.
type SourceFile struct {
	ID          int64
	Path        string
	Hash        string
	Package     string
	Table       index.SymbolTable
	LastIndexed time.Time
}
