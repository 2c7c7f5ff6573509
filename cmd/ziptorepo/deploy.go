package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maktabahmedia/ZipToRepo/archive"
	"github.com/maktabahmedia/ZipToRepo/deploy"
	"github.com/maktabahmedia/ZipToRepo/deploy/cashost"
	"github.com/maktabahmedia/ZipToRepo/deploy/ghpages"
	"github.com/maktabahmedia/ZipToRepo/inspect"
	"github.com/maktabahmedia/ZipToRepo/patch"
)

var deployFlags struct {
	target      string
	token       string
	backend     string
	description string
	domain      string
	private     bool
	casURL      string
}

var deployCmd = &cobra.Command{
	Use:   "deploy <archive.zip>",
	Short: "Analyze, patch, and publish a site archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeploy,
}

func init() {
	f := deployCmd.Flags()
	f.StringVar(&deployFlags.target, "target", "", "Deployment target name (required)")
	f.StringVar(&deployFlags.token, "token", "", "Backend credential (required)")
	f.StringVar(&deployFlags.backend, "backend", "pages", "Hosting backend: pages or cas")
	f.StringVar(&deployFlags.description, "description", "", "Deployment description")
	f.StringVar(&deployFlags.domain, "domain", "", "Custom domain")
	f.BoolVar(&deployFlags.private, "private", false, "Create the target as private where supported")
	f.StringVar(&deployFlags.casURL, "cas-url", "", "Content-addressed backend endpoint (required with --backend=cas)")

	_ = deployCmd.MarkFlagRequired("target")
	_ = deployCmd.MarkFlagRequired("token")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	res, err := archive.IngestBytes(data)
	if err != nil {
		return err
	}
	a := res.Analysis
	a.ProjectType = inspect.Classify(a, res.Capture)
	a.Warnings = inspect.DetectIssues(a, res.Capture, a.ProjectType)

	for _, w := range a.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}

	patches := patch.Generate(a, res.Capture, deployFlags.target)

	var orch deploy.Orchestrator
	switch deployFlags.backend {
	case "pages":
		orch = ghpages.New()
	case "cas":
		if deployFlags.casURL == "" {
			return fmt.Errorf("--cas-url is required with --backend=cas")
		}
		orch = cashost.New(deployFlags.casURL)
	default:
		return fmt.Errorf("unknown backend %q (want pages or cas)", deployFlags.backend)
	}

	sink := func(e deploy.Event) {
		switch {
		case e.Kind == deploy.KindError:
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s: %s\n", e.Step, e.Details)
		case e.Progress != deploy.NoProgress:
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s (%d%%)\n", e.Step, e.Details, e.Progress)
		case e.Details != "":
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", e.Step, e.Details)
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", e.Step)
		}
	}

	url, err := orch.Deploy(cmd.Context(), a, patches, deploy.Options{
		Credential:   deployFlags.token,
		Target:       deployFlags.target,
		Description:  deployFlags.description,
		Private:      deployFlags.private,
		CustomDomain: deployFlags.domain,
		Sink:         sink,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
