package patch

import (
	"fmt"
	"strings"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/archive"
)

// nextConfigMarker is the literal form the Next.js injection heuristic
// requires. Configs written differently are left alone rather than guessed
// at; the injection is best-effort by design.
const nextConfigMarker = "nextConfig = {"

// viteConfigStep ensures a Vite project carries a base path scoped to the
// deployment target. An existing config gets the option injected only when
// it is absent; a project with no config gets a minimal one synthesized.
func viteConfigStep(a analysis.ProjectAnalysis, capture archive.Capture, target string) Step {
	return func(patches []Patch) []Patch {
		if a.ProjectType != analysis.TypeVite {
			return patches
		}
		base := fmt.Sprintf("/%s/", target)

		configPath, content := existingConfig(a, capture, []string{"vite.config.js", "vite.config.ts", "vite.config.mjs"})
		if configPath == "" {
			return append(patches, Patch{
				Path: "vite.config.js",
				Content: fmt.Sprintf(`import { defineConfig } from 'vite'

export default defineConfig({
  base: '%s',
})
`, base),
				Description: "minimal Vite config with the base path set for subdirectory hosting",
			})
		}

		if strings.Contains(content, "base:") {
			return patches
		}
		marker := "defineConfig({"
		i := strings.Index(content, marker)
		if i < 0 {
			// Unrecognized config shape; do not guess.
			return patches
		}
		insert := i + len(marker)
		rewritten := content[:insert] + fmt.Sprintf("\n  base: '%s',", base) + content[insert:]

		return append(patches, Patch{
			Path:        configPath,
			Content:     rewritten,
			Description: fmt.Sprintf("adds base: '%s' to %s for subdirectory hosting", base, configPath),
		})
	}
}

// nextConfigStep injects the static-export flag into an existing Next.js
// config when the expected literal marker is present and the flag is not.
func nextConfigStep(a analysis.ProjectAnalysis, capture archive.Capture) Step {
	return func(patches []Patch) []Patch {
		if a.ProjectType != analysis.TypeNextJS {
			return patches
		}

		configPath, content := existingConfig(a, capture, []string{"next.config.js", "next.config.mjs", "next.config.ts"})
		if configPath == "" || strings.Contains(content, "output") {
			return patches
		}
		i := strings.Index(content, nextConfigMarker)
		if i < 0 {
			return patches
		}
		insert := i + len(nextConfigMarker)
		rewritten := content[:insert] + "\n  output: 'export'," + content[insert:]

		return append(patches, Patch{
			Path:        configPath,
			Content:     rewritten,
			Description: fmt.Sprintf("enables static export in %s so the build produces deployable files", configPath),
		})
	}
}

// existingConfig returns the first config path from names present in the
// manifest, together with its captured content.
func existingConfig(a analysis.ProjectAnalysis, capture archive.Capture, names []string) (string, string) {
	for _, name := range names {
		if _, ok := a.Lookup(name); ok {
			return name, capture.Texts[name]
		}
	}
	return "", ""
}
