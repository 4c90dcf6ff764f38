package cli

import (
	"fmt"
	"os"

	"buildctl/cmd/cli/runcmd"
	"buildctl/cmd/cli/statecmd"

	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "buildctl",
	Short: "buildctl - retry and pause control for pipeline build tasks",
	Long: `buildctl decides whether a failed build task is retried and whether a task is paused before it
executes. A pause is cascaded to the task's container, stage and build, and the pipeline's
subscribers are notified.

Start the API with "buildctl run server". Retry counters can be inspected with "buildctl retry-state".`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	RootCmd.AddCommand(runcmd.Command)
	RootCmd.AddCommand(statecmd.Command)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
