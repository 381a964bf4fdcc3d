// relmap plans and applies schema synchronization for entity metadata.
//
//	relmap plan --metadata schema.yaml --dsn postgres://localhost/app
//	relmap sync --dialect sqlite --dsn file:app.db
//	relmap watch
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
