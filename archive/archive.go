// Package archive ingests an uploaded project archive and normalizes it into
// a clean file manifest. It strips a detected common root folder, filters
// junk entries with a recorded reason, accumulates aggregate stats, and
// opportunistically captures small text assets for the issue detector.
//
// The ingestor performs no classification itself; its output is a partial
// analysis that the inspect package completes.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/maktabahmedia/ZipToRepo/analysis"
)

// ErrCorruptArchive indicates the uploaded archive could not be read.
// The condition is terminal and is never retried.
var ErrCorruptArchive = errors.New("archive: corrupt or unreadable archive")

const (
	// maxIndexCapture bounds the size of a root index.html that is read
	// eagerly for heuristic scanning.
	maxIndexCapture = 500 * 1024

	// maxTextCapture bounds the size of HTML/CSS/JS files captured for the
	// absolute-path scan.
	maxTextCapture = 1024 * 1024

	// macMetadataMarker is the resource-fork junk folder some archivers add.
	macMetadataMarker = "__MACOSX"
)

// Capture holds small text content read while ingesting, so downstream
// heuristics do not have to re-open files. It is a side output of Ingest,
// not part of the manifest contract.
type Capture struct {
	// IndexHTML is the content of a root index.html under 500KB, or "".
	IndexHTML string

	// PackageJSON is the content of a root package.json, or "".
	PackageJSON string

	// Texts maps kept HTML/CSS/JS paths under 1MB to their content.
	Texts map[string]string
}

// Result is the outcome of ingesting an archive: the partial analysis
// (manifest, ignored files, sizes) plus the captured text content.
type Result struct {
	Analysis analysis.ProjectAnalysis
	Capture  Capture
}

// Ingest reads a zip archive from r and produces a normalized manifest.
// A malformed archive yields an error wrapping ErrCorruptArchive.
func Ingest(r io.ReaderAt, size int64) (*Result, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	entries := collectEntries(zr)
	root := commonRoot(entryPaths(entries))

	res := &Result{Capture: Capture{Texts: map[string]string{}}}
	seen := make(map[string]struct{}, len(entries))

	for _, f := range entries {
		rel := strings.TrimPrefix(f.Name, root)
		if rel == "" {
			continue
		}
		if reason, junk := classifyJunk(rel); junk {
			res.Analysis.Ignored = append(res.Analysis.Ignored, analysis.IgnoredFile{Path: rel, Reason: reason})
			continue
		}
		if _, dup := seen[rel]; dup {
			return nil, fmt.Errorf("%w: duplicate entry %q", ErrCorruptArchive, rel)
		}
		seen[rel] = struct{}{}

		mf := analysis.NewManifestFile(rel, int64(f.UncompressedSize64), openerFor(f))
		res.Analysis.Manifest = append(res.Analysis.Manifest, mf)
		res.Analysis.TotalSize += mf.Size

		if err := capture(&res.Capture, mf); err != nil {
			return nil, err
		}
	}
	res.Analysis.FileCount = len(res.Analysis.Manifest)
	res.Analysis.ProjectType = analysis.TypeUnknown
	return res, nil
}

// IngestBytes ingests an archive held fully in memory.
func IngestBytes(data []byte) (*Result, error) {
	return Ingest(bytes.NewReader(data), int64(len(data)))
}

// collectEntries returns file entries, excluding directory markers and
// anything under the archiver metadata folder.
func collectEntries(zr *zip.Reader) []*zip.File {
	var out []*zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		if containsSegment(f.Name, macMetadataMarker) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func entryPaths(entries []*zip.File) []string {
	paths := make([]string, len(entries))
	for i, f := range entries {
		paths[i] = f.Name
	}
	return paths
}

// commonRoot detects a shared wrapping folder using the sorted first/last
// prefix heuristic: the longest common character prefix of the
// lexicographically smallest and largest paths, truncated at the last '/'
// boundary, accepted only when every path starts with it. The heuristic is
// intentionally conservative; when the candidate fails the every-entry
// check, nothing is stripped.
func commonRoot(paths []string) string {
	if len(paths) < 1 {
		return ""
	}
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	first, last := sorted[0], sorted[len(sorted)-1]
	n := 0
	for n < len(first) && n < len(last) && first[n] == last[n] {
		n++
	}
	prefix := first[:n]

	cut := strings.LastIndex(prefix, "/")
	if cut < 0 {
		return ""
	}
	prefix = prefix[:cut+1]

	for _, p := range paths {
		if !strings.HasPrefix(p, prefix) {
			return ""
		}
	}
	return prefix
}

// classifyJunk reports whether a root-relative path should be excluded from
// the manifest, with a human-readable reason.
func classifyJunk(rel string) (string, bool) {
	base := path.Base(rel)
	switch {
	case base == ".DS_Store" || base == "Thumbs.db":
		return "operating system metadata file", true
	case containsSegment(rel, "node_modules"):
		return "dependency directory; dependencies are reinstalled at build time", true
	case containsSegment(rel, ".git"):
		return "version control metadata", true
	case strings.HasSuffix(base, ".log"):
		return "log file", true
	case base == ".env" || strings.HasPrefix(base, ".env."):
		return "environment file that may contain secrets", true
	case containsSegment(rel, ".idea") || containsSegment(rel, ".vscode"):
		return "editor configuration directory", true
	}
	return "", false
}

func containsSegment(p, segment string) bool {
	for _, s := range strings.Split(p, "/") {
		if s == segment {
			return true
		}
	}
	return false
}

// configCaptureNames lists framework config files the patch generator needs
// the content of but whose extensions fall outside the text-capture set.
// The .js variants are already captured by extension.
var configCaptureNames = map[string]struct{}{
	"vite.config.ts":  {},
	"vite.config.mjs": {},
	"next.config.mjs": {},
	"next.config.ts":  {},
}

// capture reads small text assets eagerly so the issue detector and patch
// generator do not re-open archive entries.
func capture(c *Capture, f analysis.ManifestFile) error {
	readAll := func() (string, error) {
		data, err := f.Bytes()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptArchive, err)
		}
		return string(data), nil
	}

	if f.Path == "index.html" && f.Size < maxIndexCapture {
		content, err := readAll()
		if err != nil {
			return err
		}
		c.IndexHTML = content
	}
	if f.Path == "package.json" && f.Size < maxTextCapture {
		content, err := readAll()
		if err != nil {
			return err
		}
		c.PackageJSON = content
	}

	wanted := false
	switch strings.ToLower(path.Ext(f.Path)) {
	case ".html", ".css", ".js":
		wanted = true
	}
	if _, ok := configCaptureNames[f.Path]; ok {
		wanted = true
	}
	if wanted && f.Size < maxTextCapture {
		content, err := readAll()
		if err != nil {
			return err
		}
		c.Texts[f.Path] = content
	}
	return nil
}

func openerFor(f *zip.File) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return f.Open()
	}
}
