package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maktabahmedia/ZipToRepo/archive"
	"github.com/maktabahmedia/ZipToRepo/inspect"
	"github.com/maktabahmedia/ZipToRepo/patch"
)

var inspectFlags struct {
	target string
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive.zip>",
	Short: "Analyze a site archive without deploying it",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFlags.target, "target", "site", "Target name used for derived paths")
}

func runInspect(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Project type: %s\n", a.ProjectType)
	fmt.Fprintf(out, "Files: %d (%d bytes)\n", a.FileCount, a.TotalSize)

	if len(a.Ignored) > 0 {
		fmt.Fprintln(out, "\nIgnored:")
		for _, ig := range a.Ignored {
			fmt.Fprintf(out, "  %s (%s)\n", ig.Path, ig.Reason)
		}
	}
	if len(a.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range a.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	patches := patch.Generate(a, res.Capture, inspectFlags.target)
	if len(patches) > 0 {
		fmt.Fprintln(out, "\nProposed patches:")
		for _, p := range patches {
			fmt.Fprintf(out, "  %s: %s\n", p.Path, p.Description)
		}
	}
	return nil
}
