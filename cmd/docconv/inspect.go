package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"docconv/internal/codec"
	"docconv/internal/pdfinfo"
)

const previewLen = 40

func newInspectCommand() *cobra.Command {
	var base64Input bool
	cmd := &cobra.Command{
		Use:   "inspect PDF",
		Short: "List the pages of a PDF with their size and text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if base64Input {
				text, err := readInput(cmd, args[0])
				if err != nil {
					return err
				}
				if data, err = codec.Base64ToBytes(text); err != nil {
					return err
				}
			} else {
				var err error
				if data, err = os.ReadFile(args[0]); err != nil {
					return fmt.Errorf("read %s: %w", args[0], err)
				}
			}

			info, err := pdfinfo.Inspect(data)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(info.Pages))
			for _, p := range info.Pages {
				rows = append(rows, []string{
					strconv.Itoa(p.Number),
					strconv.FormatFloat(p.Width, 'f', 1, 64),
					strconv.FormatFloat(p.Height, 'f', 1, 64),
					strconv.Itoa(len(p.Text)),
					preview(p.Text),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d bytes, %d pages\n", info.Size, len(info.Pages))
			fmt.Fprintln(out, renderTable(
				[]string{"Page", "Width (pt)", "Height (pt)", "Chars", "Text"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&base64Input, "base64", false, "PDF file holds base64 text (use - to read stdin)")
	return cmd
}

func preview(s string) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= previewLen {
		return string(r)
	}
	return string(r[:previewLen]) + "..."
}
