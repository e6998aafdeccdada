package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Run the production build pipeline",
	Long: `Delete the output directory and rebuild it: copy fonts and icons, re-encode
images, then compile styles and minify HTML, scripts and SVG while the
sprite and WebP copies are produced in parallel.

The command exits non-zero if any task fails.

Examples:
  assetpipe build                       # Build into build/
  assetpipe build --config site.yml     # Use another configuration file
  ASSETPIPE_PATHS_OUTPUT=dist assetpipe build`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, _, err := loadProject(cmd, true)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := p.Runner().Run(ctx, p.Build()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %s in %s\n", p.Output(), time.Since(start).Round(time.Millisecond))
	return nil
}
