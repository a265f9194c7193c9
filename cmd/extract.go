package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/socratic/internal/concepts"
)

var extractCmd = &cobra.Command{
	Use:   "extract <document>",
	Short: "Extract a concept catalog from a study document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		e, err := newEnv(cmd, envOptions{withLLM: true})
		if err != nil {
			return err
		}
		defer e.Close()

		analysis, err := extractFile(cmd, e, args[0])
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := concepts.WriteCatalog(w, analysis); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Extracted %d concepts, %d relations, %d examples\n",
			len(analysis.Concepts), len(analysis.Relations), len(analysis.Examples))
		return nil
	},
}

func init() {
	extractCmd.Flags().StringP("output", "o", "", "Write the catalog to this file instead of stdout")
}
