package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var classifyJSON bool

var classifyCmd = &cobra.Command{
	Use:   "classify <code> [code ...]",
	Short: "Look up the classification of e-codes",
	Long:  "Prints each code with its classification. Codes missing from the table are mushbooh.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Output as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if classifyJSON {
		return json.NewEncoder(out).Encode(table.Summarize(args))
	}
	for _, code := range args {
		_, listed := table.Lookup(code)
		suffix := ""
		if !listed {
			suffix = " (not listed)"
		}
		fmt.Fprintf(out, "%s\t%s%s\n", code, table.Classify(code), suffix)
	}
	return nil
}
