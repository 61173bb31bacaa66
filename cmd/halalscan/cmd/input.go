package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const maxInputBytes = 10 << 20

// readInput returns the args joined by spaces, or stdin when there are none.
// A single "-" also reads stdin.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxInputBytes))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// readFileOrStdin reads path, or stdin for "" and "-".
func readFileOrStdin(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxInputBytes))
	}
	return os.ReadFile(path)
}
