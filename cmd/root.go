// Package cmd wires the cobra command tree: run a DAG once, or start the
// persistent scheduler, against configuration loaded by internal/config.
package cmd

import (
	"github.com/spf13/cobra"
)

var version = "0.0.0"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskrunner",
		Short: "DAG execution, HTTP pipeline, and persistent scheduler runtime",
		Long:  "taskrunner [options] <run|scheduler|version> [args]",
	}

	root.PersistentFlags().String("config", "", "config file (default is $HOME/.config/taskrunner/taskrunner.yaml)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(runCommand())
	root.AddCommand(schedulerCommand())
	root.AddCommand(versionCommand())

	return root
}

// Execute runs the root command. It is called once from cmd/taskrunner/main.go.
func Execute() error {
	return newRootCommand().Execute()
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the binary version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	}
}
