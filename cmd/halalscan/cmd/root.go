package cmd

import (
	"github.com/franckalain/halalscan/internal/ecodes"
	"github.com/spf13/cobra"
)

var tablePath string

var rootCmd = &cobra.Command{
	Use:   "halalscan",
	Short: "E-code annotation for ingredient lists",
	Long:  "Finds e-codes in ingredient text, classifies them as haram or mushbooh, and serves scan history.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tablePath, "table", "", "YAML reference table (default: built-in)")

	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadTable returns the table named by --table, or the built-in one.
func loadTable() (*ecodes.Table, error) {
	if tablePath == "" {
		return ecodes.Default(), nil
	}
	return ecodes.Load(tablePath)
}
