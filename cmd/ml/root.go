package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conn-castle/modlayer/internal/messages"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	profile    string
	verbose    int
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		Long:          messages.RootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", messages.RootFlagConfig)
	flags.StringVarP(&opts.profile, "profile", "p", "", messages.RootFlagProfile)
	flags.CountVarP(&opts.verbose, "verbose", "v", messages.RootFlagVerbose)
	flags.BoolVar(&opts.noColor, "no-color", false, messages.RootFlagNoColor)

	cmd.AddCommand(
		newAddCmd(opts),
		newRemoveCmd(opts),
		newListCmd(opts),
		newSelectCmd(opts),
		newUpgradeCmd(opts),
		newInstallArchiveCmd(opts),
		newEnableCmd(opts),
		newDisableCmd(opts),
		newProfileCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   messages.VersionUse,
		Short: messages.VersionShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), versionString())
			return err
		},
	}
}
