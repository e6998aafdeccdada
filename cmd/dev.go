package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/assetpipe/internal/assets"
)

var devCmd = &cobra.Command{
	Use:     "dev",
	Aliases: []string{"serve", "d"},
	Short:   "Build, serve and watch (the default pipeline)",
	Long: `Run the default pipeline: clean, copy, optimize images and build every
asset, then start a development server over the output directory and watch
the sources. Style changes are streamed to open browsers; HTML and script
changes trigger a full reload.

Runs until interrupted (Ctrl+C).

Examples:
  assetpipe dev                 # Serve on localhost:3000
  assetpipe dev --port 8080     # Serve on another port
  assetpipe dev --open --ui     # Open a browser and enable the status page`,
	RunE: runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)
	addServerFlags(devCmd.Flags())
}

func runDev(cmd *cobra.Command, _ []string) error {
	if err := bindServerFlags(cmd.Flags()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, _, err := loadProject(cmd, true)
	if err != nil {
		return err
	}
	return serve(ctx, cmd, p)
}

// serve runs the default pipeline and keeps its server and watcher alive
// until ctx is done. A pipeline failure cancels the wait and is returned.
func serve(ctx context.Context, cmd *cobra.Command, p *assets.Project) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Dev().Wait(gctx)
	})
	g.Go(func() error {
		if err := p.Runner().Run(gctx, p.Default()); err != nil {
			return err
		}
		if srv := p.Dev().Server(); srv != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s (Ctrl+C to stop)\n", p.Output(), srv.URL())
		}
		return nil
	})

	return g.Wait()
}
