package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/franckalain/halalscan/internal/annotate"
	"github.com/spf13/cobra"
)

var (
	annotateCodes []string
	annotateJSON  bool
)

var annotateCmd = &cobra.Command{
	Use:   "annotate [text ...]",
	Short: "Mark e-codes in ingredient text",
	Long: `Splits text into plain and code segments. Codes are matched case-insensitively
on word boundaries; text is read from stdin when no arguments are given.

  halalscan annotate --codes E120,E471 "sugar, e471, cochineal (E120)"
  sugar, [e471:mushbooh], cochineal ([E120:haram])`,
	Args: cobra.ArbitraryArgs,
	RunE: runAnnotate,
}

func init() {
	f := annotateCmd.Flags()
	f.StringSliceVarP(&annotateCodes, "codes", "c", nil, "Codes to look for (default: every code in the table)")
	f.BoolVar(&annotateJSON, "json", false, "Output segments as JSON")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	codes := annotateCodes
	if len(codes) == 0 {
		codes = table.Codes("")
	}
	segments := annotate.Annotate(text, codes, table)

	out := cmd.OutOrStdout()
	if annotateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(segments)
	}
	fmt.Fprintln(out, formatSegments(segments))
	return nil
}

// formatSegments renders code segments as [code:classification] inline.
func formatSegments(segments []annotate.Segment) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Code {
			fmt.Fprintf(&b, "[%s:%s]", s.Text, s.Classification)
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
