// main is the entry point for the segmint CLI.
package main

import (
	"os"

	"github.com/pmorales/segmint/cmd"
	"github.com/pmorales/segmint/internal/store"
)

func main() {
	defer store.CloseStores()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
