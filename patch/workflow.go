package patch

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maktabahmedia/ZipToRepo/analysis"
)

// WorkflowPath is where the synthesized CI workflow is written.
const WorkflowPath = ".github/workflows/deploy.yml"

const uploadArtifactAction = "actions/upload-pages-artifact@v3"

// workflowDoc is the GitHub Actions document synthesized for buildable
// projects. Field order matches the marshaled YAML order.
type workflowDoc struct {
	Name        string                 `yaml:"name"`
	On          workflowTriggers       `yaml:"on"`
	Permissions map[string]string      `yaml:"permissions"`
	Jobs        map[string]workflowJob `yaml:"jobs"`
}

type workflowTriggers struct {
	Push workflowPush `yaml:"push"`
}

type workflowPush struct {
	Branches []string `yaml:"branches"`
}

type workflowJob struct {
	RunsOn      string            `yaml:"runs-on"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Steps       []workflowStepDef `yaml:"steps"`
}

type workflowStepDef struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	Run  string            `yaml:"run,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
}

// workflowStep synthesizes a Pages build-and-deploy workflow for every
// project type that has a build plan. StaticSite and Unknown produce
// nothing: static content is published as-is.
func workflowStep(t analysis.ProjectType, target string) Step {
	return func(patches []Patch) []Patch {
		plan, ok := analysis.PlanFor(t, target)
		if !ok {
			return patches
		}

		doc := workflowDoc{
			Name: "Deploy to GitHub Pages",
			On:   workflowTriggers{Push: workflowPush{Branches: []string{"main"}}},
			Permissions: map[string]string{
				"contents": "read",
				"pages":    "write",
				"id-token": "write",
			},
			Jobs: map[string]workflowJob{
				"build-and-deploy": {
					RunsOn: "ubuntu-latest",
					Steps: []workflowStepDef{
						{Name: "Checkout", Uses: "actions/checkout@v4"},
						{Name: "Setup Node", Uses: "actions/setup-node@v4", With: map[string]string{"node-version": "20"}},
						{Name: "Install dependencies", Run: "npm install"},
						{Name: "Build", Run: plan.BuildCommand},
						{Name: "Upload artifact", Uses: uploadArtifactAction, With: map[string]string{"path": plan.OutputDir}},
						{Name: "Deploy", Uses: "actions/deploy-pages@v4"},
					},
				},
			},
		}

		content, err := yaml.Marshal(doc)
		if err != nil {
			// The document is fully static; marshaling cannot fail on it.
			panic(fmt.Sprintf("patch: marshal workflow: %v", err))
		}

		return append(patches, Patch{
			Path:        WorkflowPath,
			Content:     string(content),
			Description: fmt.Sprintf("CI workflow that builds the %s project and publishes %s", t, plan.OutputDir),
		})
	}
}

// spaFallbackStep rewrites an already-generated workflow patch to copy the
// entry page to 404.html right before the artifact upload, so deep links in
// client-rendered SPAs resolve on the static host. Runs after workflowStep;
// no-op when no workflow patch exists or the type is not client-rendered.
func spaFallbackStep(t analysis.ProjectType, target string) Step {
	return func(patches []Patch) []Patch {
		if !t.ClientRendered() {
			return patches
		}
		i := findPatch(patches, WorkflowPath)
		if i < 0 {
			return patches
		}

		plan, ok := analysis.PlanFor(t, target)
		if !ok {
			return patches
		}

		rewritten, err := insertFallbackStep(patches[i].Content, plan.OutputDir)
		if err != nil {
			// The content was produced by workflowStep above; leave the
			// patch untouched if it no longer parses.
			return patches
		}

		out := append([]Patch(nil), patches...)
		out[i].Content = rewritten
		out[i].Description += "; copies index.html to 404.html for SPA routing"
		return out
	}
}

// insertFallbackStep parses a workflow document and inserts a
// copy-index-to-404 run step immediately before the artifact-upload step.
func insertFallbackStep(content, outputDir string) (string, error) {
	var doc workflowDoc
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return "", fmt.Errorf("patch: parse workflow: %w", err)
	}

	for name, job := range doc.Jobs {
		idx := -1
		for i, s := range job.Steps {
			if strings.HasPrefix(s.Uses, "actions/upload-pages-artifact") {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		fallback := workflowStepDef{
			Name: "Add SPA fallback page",
			Run:  fmt.Sprintf("cp %s/index.html %s/404.html", outputDir, outputDir),
		}
		steps := make([]workflowStepDef, 0, len(job.Steps)+1)
		steps = append(steps, job.Steps[:idx]...)
		steps = append(steps, fallback)
		steps = append(steps, job.Steps[idx:]...)
		job.Steps = steps
		doc.Jobs[name] = job
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("patch: marshal workflow: %w", err)
	}
	return string(out), nil
}
