// Package stage materializes the final publishable file set: the kept
// manifest files overlaid with the generated patches, plus an optional
// custom-domain marker. The overlay is staged on an in-memory billy
// filesystem so same-path writes resolve with filesystem semantics — a
// patch always wins over a manifest file at the same path.
package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/patch"
)

// File is a fully materialized file ready for upload.
type File struct {
	Path string
	Data []byte
}

// Prepare builds the upload set: every manifest file, then every patch
// (overriding same-path manifest files or appending new ones), then a CNAME
// marker when customDomain is set. The result is sorted by path for
// deterministic upload order.
func Prepare(a analysis.ProjectAnalysis, patches []patch.Patch, customDomain string) ([]File, error) {
	fs := memfs.New()

	seen := make(map[string]struct{}, len(a.Manifest))
	for _, mf := range a.Manifest {
		if _, dup := seen[mf.Path]; dup {
			return nil, fmt.Errorf("stage: duplicate manifest path %q", mf.Path)
		}
		seen[mf.Path] = struct{}{}

		data, err := mf.Bytes()
		if err != nil {
			return nil, fmt.Errorf("stage: materialize %q: %w", mf.Path, err)
		}
		if err := util.WriteFile(fs, mf.Path, data, 0o644); err != nil {
			return nil, fmt.Errorf("stage: write %q: %w", mf.Path, err)
		}
	}

	for _, p := range patches {
		if err := util.WriteFile(fs, p.Path, []byte(p.Content), 0o644); err != nil {
			return nil, fmt.Errorf("stage: apply patch %q: %w", p.Path, err)
		}
	}

	if customDomain != "" {
		if err := util.WriteFile(fs, "CNAME", []byte(customDomain+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("stage: write CNAME: %w", err)
		}
	}

	var files []File
	err := util.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := util.ReadFile(fs, path)
		if err != nil {
			return fmt.Errorf("stage: read back %q: %w", path, err)
		}
		rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
		files = append(files, File{Path: rel, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
