package analysis

import "fmt"

// ProjectType is the closed set of framework labels the classifier can
// assign to an uploaded project.
type ProjectType string

const (
	// TypeStaticSite is a plain static site with a root index.html.
	TypeStaticSite ProjectType = "static"

	// TypeNodeProject is a Node.js project with no recognized framework.
	TypeNodeProject ProjectType = "node"

	// TypeVite is a Vite-based project.
	TypeVite ProjectType = "vite"

	// TypeCRA is a Create React App project.
	TypeCRA ProjectType = "create-react-app"

	// TypeNextJS is a Next.js project.
	TypeNextJS ProjectType = "nextjs"

	// TypeAngular is an Angular workspace.
	TypeAngular ProjectType = "angular"

	// TypeVue is a Vue CLI project.
	TypeVue ProjectType = "vue"

	// TypeUnknown is the fallback when no heuristic matched.
	TypeUnknown ProjectType = "unknown"
)

// String returns a human-readable label.
func (t ProjectType) String() string {
	switch t {
	case TypeStaticSite:
		return "Static site"
	case TypeNodeProject:
		return "Node.js project"
	case TypeVite:
		return "Vite"
	case TypeCRA:
		return "Create React App"
	case TypeNextJS:
		return "Next.js"
	case TypeAngular:
		return "Angular"
	case TypeVue:
		return "Vue"
	case TypeUnknown:
		return "Unknown"
	}
	return string(t)
}

// ClientRendered reports whether the type is a client-rendered SPA that
// needs a 404 fallback page to support deep links on a static host.
func (t ProjectType) ClientRendered() bool {
	switch t {
	case TypeVite, TypeCRA, TypeAngular, TypeVue:
		return true
	}
	return false
}

// BuildPlan describes how a framework's deployable output is produced: the
// command a CI workflow should run and the directory it writes.
type BuildPlan struct {
	BuildCommand string
	OutputDir    string
}

// buildPlans maps every buildable project type to its plan. Output
// directories containing %s are scoped by the deployment target name.
var buildPlans = map[ProjectType]BuildPlan{
	TypeVite:        {BuildCommand: "npm run build", OutputDir: "dist"},
	TypeCRA:         {BuildCommand: "npm run build", OutputDir: "build"},
	TypeNextJS:      {BuildCommand: "npm run build", OutputDir: "out"},
	TypeAngular:     {BuildCommand: "npm run build", OutputDir: "dist/%s/browser"},
	TypeVue:         {BuildCommand: "npm run build", OutputDir: "dist"},
	TypeNodeProject: {BuildCommand: "npm run build", OutputDir: "dist"},
}

// PlanFor returns the build plan for a project type, with any
// target-scoped output directory resolved. The second return is false for
// types that are not built (StaticSite, Unknown).
func PlanFor(t ProjectType, target string) (BuildPlan, bool) {
	plan, ok := buildPlans[t]
	if !ok {
		return BuildPlan{}, false
	}
	if t == TypeAngular {
		plan.OutputDir = fmt.Sprintf(plan.OutputDir, target)
	}
	return plan, true
}
