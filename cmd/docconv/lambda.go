package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"docconv/internal/app"
)

func newLambdaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve invocations from the AWS Lambda runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				// lambda.Start does not return; the runtime owns the process.
				lambda.Start(a.Lambda.Handle)
				return nil
			})
		},
	}
}
