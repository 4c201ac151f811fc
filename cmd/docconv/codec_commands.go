package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docconv/internal/codec"
)

func newEncodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "encode FILE",
		Short: "Print the base64 encoding of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := codec.ReadFileBase64(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode FILE OUT",
		Short: "Decode a file holding base64 text into OUT (use - to read stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			n, err := codec.WriteFileFromBase64(args[1], text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, args[1])
			return nil
		},
	}
}

func newEnvelopeCommand() *cobra.Command {
	var kwargsFlag string
	cmd := &cobra.Command{
		Use:   "envelope FUNCTION",
		Short: "Build a base64 request envelope for FUNCTION",
		Long: `Build a base64 request envelope. Keyword arguments are given as a JSON object.
A string value of the form @path is replaced by the base64 content of that file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kwargs := map[string]any{}
			if kwargsFlag != "" {
				if err := json.Unmarshal([]byte(kwargsFlag), &kwargs); err != nil {
					return fmt.Errorf("--kwargs must be a JSON object: %w", err)
				}
			}
			for k, v := range kwargs {
				s, ok := v.(string)
				if !ok || len(s) < 2 || s[0] != '@' {
					continue
				}
				encoded, err := codec.ReadFileBase64(s[1:])
				if err != nil {
					return err
				}
				kwargs[k] = encoded
			}

			env, err := codec.DictToBase64(map[string]any{"function": args[0], "kwargs": kwargs})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), env)
			return nil
		},
	}
	cmd.Flags().StringVar(&kwargsFlag, "kwargs", "", "Keyword arguments as a JSON object")
	return cmd
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
