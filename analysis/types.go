// Package analysis defines the data model shared by every stage of the
// deployment pipeline: the normalized file manifest produced by archive
// ingestion, the project classification, and the aggregate analysis result
// consumed by the patch generator and the deployment orchestrators.
package analysis

import (
	"fmt"
	"io"
)

// ManifestFile is a single file kept from the uploaded archive.
// Paths are root-relative, forward-slash separated, with no leading slash,
// and are unique within a manifest.
type ManifestFile struct {
	// Path is the normalized root-relative path of the file.
	Path string

	// Size is the uncompressed size in bytes.
	Size int64

	opener func() (io.ReadCloser, error)
}

// NewManifestFile creates a ManifestFile whose content is produced on demand
// by the given opener.
func NewManifestFile(path string, size int64, opener func() (io.ReadCloser, error)) ManifestFile {
	return ManifestFile{Path: path, Size: size, opener: opener}
}

// Open returns a reader over the file content. The caller owns the returned
// reader and must close it.
func (f ManifestFile) Open() (io.ReadCloser, error) {
	if f.opener == nil {
		return nil, fmt.Errorf("analysis: file %q has no content source", f.Path)
	}
	return f.opener()
}

// Bytes reads the full file content into memory.
func (f ManifestFile) Bytes() ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("analysis: read %q: %w", f.Path, err)
	}
	return data, nil
}

// IgnoredFile records a file excluded from the manifest together with a
// human-readable justification. Ignored files are never uploaded.
type IgnoredFile struct {
	Path   string
	Reason string
}

// ProjectAnalysis is the aggregate result of ingesting and inspecting an
// uploaded archive. It is immutable; use ApplyFix to derive an updated value.
type ProjectAnalysis struct {
	// Manifest holds every kept file, in archive enumeration order.
	Manifest []ManifestFile

	// Ignored holds every excluded file with its reason.
	Ignored []IgnoredFile

	// FileCount is the number of kept files.
	FileCount int

	// TotalSize is the sum of the kept file sizes in bytes.
	TotalSize int64

	// ProjectType is the classified framework, or TypeUnknown.
	ProjectType ProjectType

	// Warnings holds de-duplicated human-readable issue descriptions.
	Warnings []string
}

// ApplyFix returns a new ProjectAnalysis whose manifest is the result of
// applying transform to the current manifest. FileCount and TotalSize are
// recomputed; classification and warnings are carried over unchanged and
// should be re-derived by the caller if the fix affects them.
func (a ProjectAnalysis) ApplyFix(transform func([]ManifestFile) []ManifestFile) ProjectAnalysis {
	next := a
	next.Manifest = transform(append([]ManifestFile(nil), a.Manifest...))
	next.FileCount = len(next.Manifest)
	next.TotalSize = 0
	for _, f := range next.Manifest {
		next.TotalSize += f.Size
	}
	return next
}

// Lookup returns the manifest file at the given path.
func (a ProjectAnalysis) Lookup(path string) (ManifestFile, bool) {
	for _, f := range a.Manifest {
		if f.Path == path {
			return f, true
		}
	}
	return ManifestFile{}, false
}
