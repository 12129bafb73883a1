package store

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/symdex/internal/index"
)

// HashBytes returns the hex sha256 of data.
func HashBytes(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// HashFile returns a content hash for a classpath input. Regular files
// hash their bytes. Directories hash the relative path, size and
// modification time of every file beneath them, so a rebuilt class
// directory gets a new hash without reading every class.
func HashFile(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	h := sha256.New()
	if !fi.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
		defer f.Close()
		if _, err := io.Copy(h, f); err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
		return fmt.Sprintf("%x", h.Sum(nil)), nil
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(path, p)
		fmt.Fprintf(h, "%s:%d:%d\n", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// APIHash computes a deterministic hash over the semantic identity of
// syms: name, kind, visibility, signature, parameters, return and receiver
// types, type parameters and supertypes. Locations do not affect it, so
// editing a function body leaves the hash unchanged.
func APIHash(syms []*index.Symbol) string {
	lines := make([]string, 0, len(syms))
	for _, s := range syms {
		var b strings.Builder
		fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s|%s",
			s.FqName, s.Kind, s.Visibility, s.Signature, s.ReturnType, s.ReceiverType, s.ContainingClass)
		for _, p := range s.Parameters {
			fmt.Fprintf(&b, "|p:%s:%s:%v:%v", p.Name, p.Type, p.HasDefault, p.IsVararg)
		}
		for _, tp := range s.TypeParameters {
			fmt.Fprintf(&b, "|t:%s", tp)
		}

		// Supertypes sorted for determinism.
		supers := append([]string(nil), s.SuperTypes...)
		sort.Strings(supers)
		for _, st := range supers {
			fmt.Fprintf(&b, "|s:%s", st)
		}
		fmt.Fprintf(&b, "|d:%v", s.Deprecated)
		lines = append(lines, b.String())
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		fmt.Fprintln(h, l)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
