package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docconv/internal/app"
	"docconv/internal/codec"
	"docconv/internal/dispatch"
	"docconv/internal/domain"
)

func newInvokeCommand(ctx *commandContext) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "invoke [ENVELOPE]",
		Short: "Dispatch one envelope locally and print the response",
		Long: `Dispatch one base64 request envelope through the same path as the Lambda handler.
The envelope is read from the argument, or from stdin when it is omitted or "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envelope := "-"
			if len(args) == 1 {
				envelope = args[0]
			}
			if envelope == "-" {
				text, err := readInput(cmd, "-")
				if err != nil {
					return err
				}
				envelope = text
			}

			return ctx.withApp(func(a *app.App) error {
				resp := a.Dispatcher.Dispatch(cmd.Context(), envelope)

				out, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return err
				}
				if outDir == "" {
					fmt.Fprintln(cmd.OutOrStdout(), string(out))
				}
				if resp.StatusCode != 200 {
					if outDir != "" {
						fmt.Fprintln(cmd.ErrOrStderr(), resp.Body)
					}
					return fmt.Errorf("invocation failed with status %d", resp.StatusCode)
				}
				if outDir == "" {
					return nil
				}
				files, err := writeResult(outDir, resp)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Decode the result into files in this directory instead of printing the response")
	return cmd
}

// writeResult decodes a successful response into document.pdf or
// page-NNN.png files and returns their paths.
func writeResult(dir string, resp dispatch.Response) ([]string, error) {
	var body struct {
		Result   json.RawMessage `json:"result"`
		Function string          `json:"function"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	switch body.Function {
	case domain.OpRenderHTMLToPDF:
		var pdf string
		if err := json.Unmarshal(body.Result, &pdf); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, "document.pdf")
		if _, err := codec.WriteFileFromBase64(path, pdf); err != nil {
			return nil, err
		}
		return []string{path}, nil

	case domain.OpRasterizePDFToImages:
		var pages []string
		if err := json.Unmarshal(body.Result, &pages); err != nil {
			return nil, err
		}
		paths := make([]string, 0, len(pages))
		for i, page := range pages {
			path := filepath.Join(dir, fmt.Sprintf("page-%03d.png", i+1))
			if _, err := codec.WriteFileFromBase64(path, page); err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
		return paths, nil
	}
	return nil, fmt.Errorf("no file layout for function %q", body.Function)
}
