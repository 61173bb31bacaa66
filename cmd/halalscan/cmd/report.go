package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/franckalain/halalscan/internal/models"
	"github.com/franckalain/halalscan/internal/scan"
	"github.com/spf13/cobra"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report [response.json]",
	Short: "Normalize a prediction response and annotate its ingredients",
	Long:  "Reads a raw prediction response (file or stdin), applies defaults and prints the annotated result.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output result and report as JSON")
}

func runReport(cmd *cobra.Command, args []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}

	var path string
	if len(args) == 1 {
		path = args[0]
	}
	data, err := readFileOrStdin(cmd, path)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	result, err := scan.Decode(data)
	if err != nil {
		return err
	}
	report := scan.NewReport(result, table)

	out := cmd.OutOrStdout()
	if reportJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"result": result, "report": report})
	}
	writeReport(out, result, report)
	return nil
}

func writeReport(w io.Writer, result models.ScanResult, report scan.Report) {
	fmt.Fprintf(w, "%s: %s (confidence %.0f%%)\n", result.ProductName, result.HalalStatus, result.Confidence*100)
	if result.HalalLogoDetected {
		fmt.Fprintln(w, "halal logo detected")
	}
	if result.Barcode != "" {
		fmt.Fprintf(w, "barcode %s\n", result.Barcode)
	}
	for _, ing := range report.Ingredients {
		fmt.Fprintf(w, "  %s\n", formatSegments(ing.Segments))
	}
	if len(report.ECodes) > 0 {
		fmt.Fprintf(w, "e-codes (%d haram):\n", report.HaramCodes)
		for _, c := range report.ECodes {
			fmt.Fprintf(w, "  %s\t%s\n", c.Code, c.Classification)
		}
	}
}
