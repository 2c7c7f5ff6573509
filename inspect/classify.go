// Package inspect labels an ingested project with its framework and scans
// its text assets for structural problems.
//
// Classification is an ordered decision list: signal sets overlap (a Vite
// project usually also carries a generic package.json), so the first
// matching rule wins and the rule order is a design contract pinned by
// tests.
package inspect

import (
	"strings"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/archive"
)

// viteConfigs, nextConfigs and vueConfigs are the root config file names
// each framework is recognized by.
var (
	viteConfigs = []string{"vite.config.js", "vite.config.ts", "vite.config.mjs"}
	nextConfigs = []string{"next.config.js", "next.config.mjs", "next.config.ts"}
	vueConfigs  = []string{"vue.config.js"}
)

// Classify assigns a ProjectType to the manifest. The capture supplies the
// root package.json content used for the Create React App dependency
// fingerprint.
func Classify(a analysis.ProjectAnalysis, capture archive.Capture) analysis.ProjectType {
	has := pathSet(a)

	switch {
	case hasAny(has, viteConfigs):
		return analysis.TypeVite
	case hasAny(has, nextConfigs):
		return analysis.TypeNextJS
	case has["angular.json"]:
		return analysis.TypeAngular
	case hasAny(has, vueConfigs):
		return analysis.TypeVue
	case has["package.json"] && strings.Contains(capture.PackageJSON, `"react-scripts"`):
		return analysis.TypeCRA
	case has["index.html"]:
		return analysis.TypeStaticSite
	case has["package.json"]:
		return analysis.TypeNodeProject
	}
	return analysis.TypeUnknown
}

func pathSet(a analysis.ProjectAnalysis) map[string]bool {
	set := make(map[string]bool, len(a.Manifest))
	for _, f := range a.Manifest {
		set[f.Path] = true
	}
	return set
}

func hasAny(set map[string]bool, names []string) bool {
	for _, n := range names {
		if set[n] {
			return true
		}
	}
	return false
}
