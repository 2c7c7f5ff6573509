// ziptorepo inspects an uploaded site archive, applies corrective patches,
// and publishes it to a static hosting backend.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ziptorepo",
	Short: "Publish a zipped site to static hosting",
	Long: "ziptorepo takes a project zip, detects its framework, patches it for\n" +
		"deployment, and publishes it to GitHub Pages or a content-addressed host.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
