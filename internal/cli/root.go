// Package cli implements posterctl, the admin view of the poster catalog.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"
)

// Execute runs posterctl with args and releases everything the command opened,
// whether or not it succeeded.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	var configFlag string
	cc := newCommandContext(&configFlag, errOut)
	defer cc.close()

	root := newRootCommand(cc, &configFlag)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	return root.ExecuteContext(ctx)
}

func newRootCommand(cc *commandContext, configFlag *string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "posterctl",
		Short:         "Manage the poster catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(configFlag, "config", "c", "", "Configuration file path (default config.yaml)")

	rootCmd.AddCommand(newLoginCommand(cc))
	rootCmd.AddCommand(newLogoutCommand(cc))
	rootCmd.AddCommand(newListCommand(cc))
	rootCmd.AddCommand(newAddCommand(cc))
	rootCmd.AddCommand(newUpdateCommand(cc))
	rootCmd.AddCommand(newToggleCommand(cc))
	rootCmd.AddCommand(newDeleteCommand(cc))
	rootCmd.AddCommand(newUploadCommand(cc))
	rootCmd.AddCommand(newReplaceImageCommand(cc))
	return rootCmd
}
