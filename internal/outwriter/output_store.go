package outwriter

import (
	"fmt"
	"io"
	"sort"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// PrintStoreStatus prints store health and size information.
func PrintStoreStatus(status schema.StoreStatus, cfg *contract.Config) {
	if cfg.Output == schema.JSONOut {
		_ = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		}, "Wrote JSON")
		return
	}
	fmt.Printf("Store Backend: %s\n", status.Backend)
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	if !status.OldestData.IsZero() {
		fmt.Printf("Oldest Data: %s\n", status.OldestData.Format("2006-01-02 15:04:05"))
		fmt.Printf("Newest Data: %s\n", status.NewestData.Format("2006-01-02 15:04:05"))
	}
	if status.SizeBytes > 0 {
		fmt.Printf("Database Size: %d bytes\n", status.SizeBytes)
	}
	fmt.Println("Table Sizes:")
	tables := make([]string, 0, len(status.TableRows))
	for table := range status.TableRows {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Printf("  %s: %d rows\n", table, status.TableRows[table])
	}
}
