package index

import "errors"

var (
	// ErrUnknownSnapshotShape is returned when a JSON snapshot is neither
	// IndexData nor StdlibIndexData.
	ErrUnknownSnapshotShape = errors.New("index: unknown snapshot shape")

	// ErrAsymmetricDependency reports a DependencyTracker edge recorded on
	// one side only.
	ErrAsymmetricDependency = errors.New("index: asymmetric dependency edge")

	// ErrFileNotIndexed is returned for operations on a path the
	// ProjectIndex does not hold.
	ErrFileNotIndexed = errors.New("index: file not indexed")
)
