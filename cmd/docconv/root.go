package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "docconv",
		Short:         "HTML to PDF and PDF to PNG conversion service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newLambdaCommand(ctx))
	rootCmd.AddCommand(newInvokeCommand(ctx))
	rootCmd.AddCommand(newEncodeCommand())
	rootCmd.AddCommand(newDecodeCommand())
	rootCmd.AddCommand(newEnvelopeCommand())
	rootCmd.AddCommand(newInspectCommand())

	return rootCmd
}
