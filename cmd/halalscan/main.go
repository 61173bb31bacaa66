// halalscan annotates ingredient text with the e-codes it contains and their
// halal classification.
package main

import (
	"os"

	"github.com/franckalain/halalscan/cmd/halalscan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
