package inspect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/archive"
)

// refPattern matches src= and href= attribute references in HTML/CSS/JS
// text. Single and double quotes are accepted.
var refPattern = regexp.MustCompile(`(?:src|href)\s*=\s*["']([^"']+)["']`)

// WarnAbsolutePaths is the warning raised when any scanned asset references
// a root-absolute path.
const WarnAbsolutePaths = "Some files reference absolute paths (src=\"/...\" or href=\"/...\"); these break when the site is served from a subdirectory. Use relative paths instead."

// DetectIssues scans the analysis and captured text for structural problems
// and returns de-duplicated, human-readable warnings. Each distinct warning
// text appears at most once regardless of how many files trigger it.
func DetectIssues(a analysis.ProjectAnalysis, capture archive.Capture, projectType analysis.ProjectType) []string {
	w := newWarnings()

	scanAbsolutePaths(w, capture)
	scanMissingAssets(w, a, capture)
	scanUploadRoot(w, a, projectType)

	return w.list
}

// warnings collects warning strings, keeping only the first occurrence of
// each distinct text while preserving insertion order.
type warnings struct {
	seen map[string]struct{}
	list []string
}

func newWarnings() *warnings {
	return &warnings{seen: map[string]struct{}{}}
}

func (w *warnings) add(text string) {
	if _, dup := w.seen[text]; dup {
		return
	}
	w.seen[text] = struct{}{}
	w.list = append(w.list, text)
}

// scanAbsolutePaths raises a single warning when any captured HTML/CSS/JS
// file references a root-absolute (but not protocol-relative) path.
func scanAbsolutePaths(w *warnings, capture archive.Capture) {
	for _, content := range capture.Texts {
		for _, m := range refPattern.FindAllStringSubmatch(content, -1) {
			ref := m[1]
			if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
				w.add(WarnAbsolutePaths)
				return
			}
		}
	}
}

// scanMissingAssets checks every local reference in a captured root
// index.html against the manifest and warns about each one that resolves to
// no file.
func scanMissingAssets(w *warnings, a analysis.ProjectAnalysis, capture archive.Capture) {
	if capture.IndexHTML == "" {
		return
	}
	present := pathSet(a)

	for _, m := range refPattern.FindAllStringSubmatch(capture.IndexHTML, -1) {
		ref, ok := normalizeRef(m[1])
		if !ok {
			continue
		}
		if !present[ref] {
			w.add(fmt.Sprintf("index.html references %q but no such file is in the upload.", ref))
		}
	}
}

// normalizeRef reduces an attribute reference to a manifest path. The second
// return is false for references that cannot be checked locally: absolute
// URLs, protocol-relative URLs, fragment-only refs, and root-absolute refs.
func normalizeRef(ref string) (string, bool) {
	switch {
	case ref == "",
		strings.Contains(ref, "://"),
		strings.HasPrefix(ref, "//"),
		strings.HasPrefix(ref, "#"),
		strings.HasPrefix(ref, "/"),
		strings.HasPrefix(ref, "data:"),
		strings.HasPrefix(ref, "mailto:"):
		return "", false
	}

	ref = strings.TrimPrefix(ref, "./")
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return "", false
	}
	return ref, true
}

// scanUploadRoot applies the misplaced-source and nested-root heuristics:
// it detects uploads that contain source code rather than a build, and
// uploads whose real site root is nested one folder down. Framework
// projects are exempt; a bare package.json classifies as a Node project,
// which is exactly the misplaced-source shape, so that label passes
// through too.
func scanUploadRoot(w *warnings, a analysis.ProjectAnalysis, projectType analysis.ProjectType) {
	if projectType != analysis.TypeUnknown && projectType != analysis.TypeNodeProject {
		return
	}
	present := pathSet(a)

	if present["package.json"] && !present["index.html"] {
		w.add("This upload looks like project source code, not a built site.")
		if hasBuildOutputDir(a) {
			w.add("A build output directory was found; zip the contents of that directory and upload it instead.")
		} else {
			w.add("Run the project's build locally and upload the build output instead.")
		}
		return
	}

	if !present["package.json"] && !present["index.html"] {
		if hasNestedIndex(a) {
			w.add("index.html was found in a nested folder. Re-zip from inside the project folder so index.html sits at the top of the archive.")
		} else {
			w.add("No index.html entry page was found anywhere in the upload.")
		}
	}
}

func hasBuildOutputDir(a analysis.ProjectAnalysis) bool {
	for _, f := range a.Manifest {
		for _, dir := range []string{"dist/", "build/", "out/"} {
			if strings.HasPrefix(f.Path, dir) {
				return true
			}
		}
	}
	return false
}

func hasNestedIndex(a analysis.ProjectAnalysis) bool {
	for _, f := range a.Manifest {
		if strings.HasSuffix(f.Path, "/index.html") {
			return true
		}
	}
	return false
}
