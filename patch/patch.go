// Package patch synthesizes corrective file patches that make an inspected
// project deployable: a CI workflow selected from the per-framework build
// table, framework config adjustments, and a 404 fallback for
// client-rendered SPAs.
//
// Generation is an ordered pipeline of pure steps. Each step derives a new
// patch list from the previous one; the 404-fallback step rewrites the
// workflow patch produced earlier, located by its path, and is a no-op when
// that patch does not exist.
package patch

import (
	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/archive"
)

// Patch describes a file to create, or to override an existing manifest
// entry with, at upload time. Patches are pure data; nothing is modified in
// place on disk or storage.
type Patch struct {
	// Path is the root-relative destination of the file.
	Path string

	// Content is the full desired file content.
	Content string

	// Description explains the patch to the user.
	Description string
}

// Step transforms a patch list into a new patch list. Steps never mutate
// their input.
type Step func([]Patch) []Patch

// Generate runs the full patch pipeline for the analyzed project. target is
// the deployment target name, used for derived paths such as the
// repository-scoped base path.
func Generate(a analysis.ProjectAnalysis, capture archive.Capture, target string) []Patch {
	steps := []Step{
		workflowStep(a.ProjectType, target),
		viteConfigStep(a, capture, target),
		nextConfigStep(a, capture),
		spaFallbackStep(a.ProjectType, target),
	}

	var patches []Patch
	for _, step := range steps {
		patches = step(patches)
	}
	return patches
}

// findPatch returns the index of the patch at path, or -1.
func findPatch(patches []Patch, path string) int {
	for i, p := range patches {
		if p.Path == path {
			return i
		}
	}
	return -1
}
