package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/assetpipe/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, git commit, build time, Go version and platform.

Examples:
  assetpipe version              # Human readable
  assetpipe version --short      # Version number only
  assetpipe version -f json      # Machine readable`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addFormatFlag(versionCmd.Flags(), &versionFormat, "format", "f", "text", "text", "json", "yaml")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "show the version number only")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	info := version.GetBuildInfo()

	switch versionFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "yaml":
		return yaml.NewEncoder(out).Encode(info)
	}

	if versionShort {
		_, err := fmt.Fprintln(out, version.GetShortVersion())
		return err
	}
	_, err := fmt.Fprint(out, info.String())
	return err
}
