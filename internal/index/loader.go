package index

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
)

// Shape identifies which snapshot layout a JSON document uses.
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeIndexData
	ShapeStdlibData
)

func (s Shape) String() string {
	switch s {
	case ShapeIndexData:
		return "IndexData"
	case ShapeStdlibData:
		return "StdlibIndexData"
	}
	return "empty"
}

// membersKey matches a "members" object key, not a string value.
var membersKey = regexp.MustCompile(`"members"\s*:`)

// DetectShape inspects a snapshot document. The top-level "classes" value
// decides first: an array is IndexData, an object is StdlibIndexData. Then
// "functions" means IndexData and "topLevelFunctions" StdlibIndexData. A
// "members" key anywhere is the last hint for the class-centric shape. A
// document with no recognizable content is ShapeEmpty.
func DetectShape(data []byte) (Shape, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		if json.Valid(data) {
			return ShapeEmpty, ErrUnknownSnapshotShape
		}
		return ShapeEmpty, fmt.Errorf("index: parse snapshot: %w", err)
	}
	if classes := bytes.TrimSpace(top["classes"]); len(classes) > 0 {
		switch classes[0] {
		case '[':
			return ShapeIndexData, nil
		case '{':
			return ShapeStdlibData, nil
		}
	}
	if _, ok := top["functions"]; ok {
		return ShapeIndexData, nil
	}
	if _, ok := top["topLevelFunctions"]; ok {
		return ShapeStdlibData, nil
	}
	if membersKey.Match(data) {
		return ShapeStdlibData, nil
	}
	if _, ok := top["classes"]; ok {
		return ShapeIndexData, nil
	}
	return ShapeEmpty, nil
}

// LoadStdlib reads a snapshot in either shape into a StdlibIndex.
func LoadStdlib(r io.Reader) (*StdlibIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("index: read snapshot: %w", err)
	}
	return LoadStdlibBytes(data)
}

// LoadStdlibBytes is LoadStdlib over an in-memory document.
func LoadStdlibBytes(data []byte) (*StdlibIndex, error) {
	shape, err := DetectShape(data)
	if err != nil {
		return nil, err
	}
	switch shape {
	case ShapeStdlibData:
		var d StdlibIndexData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("index: decode stdlib snapshot: %w", err)
		}
		idx := NewStdlibIndex(d.Version, d.KotlinVersion)
		idx.AddAll(d.ToSymbols())
		return idx, nil
	case ShapeIndexData:
		var d IndexData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("index: decode index snapshot: %w", err)
		}
		idx := NewStdlibIndex(d.Version, d.KotlinVersion)
		idx.AddAll(d.ToSymbols())
		return idx, nil
	}
	return EmptyStdlib(), nil
}

// LoadClasspath reads a snapshot into a ClasspathIndex. The file path of
// every entry is recorded as a seen source.
func LoadClasspath(r io.Reader) (*ClasspathIndex, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("index: read snapshot: %w", err)
	}
	shape, err := DetectShape(data)
	if err != nil {
		return nil, err
	}
	var syms []*Symbol
	switch shape {
	case ShapeStdlibData:
		var d StdlibIndexData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("index: decode stdlib snapshot: %w", err)
		}
		syms = d.ToSymbols()
	case ShapeIndexData:
		var d IndexData
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("index: decode index snapshot: %w", err)
		}
		syms = d.ToSymbols()
	}
	idx := NewClasspathIndex()
	idx.AddAll(syms)
	for _, s := range syms {
		if s.FilePath != "" {
			idx.MarkSeen(s.FilePath)
		}
	}
	return idx, nil
}

// ToIndexData snapshots the classpath index.
func (c *ClasspathIndex) ToIndexData() IndexData {
	return IndexDataFromSymbols(c.All(), "1.0", "")
}

// ToIndexData snapshots the stdlib index.
func (x *StdlibIndex) ToIndexData() IndexData {
	return IndexDataFromSymbols(x.All(), x.version, x.kotlinVersion)
}

// WriteSnapshot encodes v as indented JSON.
func WriteSnapshot(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("index: write snapshot: %w", err)
	}
	return nil
}
