package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run tasks or pipelines by name",
	Long: `Run one or more registered tasks or pipelines, in the order given. Use
"assetpipe tasks" to list the available names.

If a server or watcher was started, the command keeps running until
interrupted.

Examples:
  assetpipe run styles               # Recompile the stylesheet only
  assetpipe run clean copy html      # Run three tasks in sequence
  assetpipe run startServer          # Serve the current output directory`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTasks,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addServerFlags(runCmd.Flags())
}

func runTasks(cmd *cobra.Command, args []string) error {
	if err := bindServerFlags(cmd.Flags()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, _, err := loadProject(cmd, true)
	if err != nil {
		return err
	}

	r, err := p.Registry().Lookup(args...)
	if err != nil {
		return err
	}

	if err := p.Runner().Run(ctx, r); err != nil {
		_ = p.Dev().Close(cmd.Context())
		return err
	}

	if p.Dev().Active() {
		return p.Dev().Wait(ctx)
	}
	return nil
}
