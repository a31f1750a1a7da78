package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pmorales/segmint/internal/contract"
	"github.com/pmorales/segmint/schema"
)

// PrintMatches outputs ranked project candidates for an ad-hoc query.
func PrintMatches(query string, matches []schema.ProjectMatch, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, matches)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			header := []string{"rank", "project", "description", "confidence", "method", "label"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				for i, m := range matches {
					rec := []string{
						strconv.Itoa(i + 1),
						m.Code,
						m.Description,
						fmt.Sprintf("%.2f", m.Confidence),
						string(m.Method),
						contract.GetPlainLabel(m.Confidence),
					}
					if err := cw.Write(rec); err != nil {
						return err
					}
				}
				return nil
			})
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMatchTable(query, matches, cfg, duration, w)
		}, "Wrote table")
	}
}

// writeMatchTable generates and writes the human-readable table.
func writeMatchTable(query string, matches []schema.ProjectMatch, cfg *contract.Config, duration time.Duration, writer io.Writer) error {
	if _, err := fmt.Fprintf(writer, "%s %q\n", headerWithEmoji(cfg, "🔎", "Matches for"), query); err != nil {
		return err
	}

	table := tablewriter.NewWriter(writer)
	table.Header([]string{"Rank", "Project", "Description", "Conf", "Method", "Label"})
	table.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignRight
	})

	label := contract.GetPlainLabel
	if cfg.UseColors {
		label = contract.GetColorLabel
	}
	descWidth := getMaxDescriptionWidth(cfg)

	var data [][]string
	for i, m := range matches {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			m.Code,
			contract.TruncateText(m.Description, descWidth),
			fmt.Sprintf("%.2f", m.Confidence),
			string(m.Method),
			label(m.Confidence),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(writer, "Showing %d candidates in %v\n", len(matches), duration)
	return err
}

// PrintCatalogStatus outputs catalog size, freshness and match counters.
func PrintCatalogStatus(status schema.CatalogStatus, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		if _, err := fmt.Fprintln(w, headerWithEmoji(cfg, "📒", "Project catalog")); err != nil {
			return err
		}
		lastSync := "never"
		if !status.LastSync.IsZero() {
			lastSync = status.LastSync.In(cfg.Location).Format(contract.DateTimeFormat)
		}
		_, err := fmt.Fprintf(w, "  entries: %d (%d active)\n  last sync: %s\n  recorded matches: %d\n",
			status.Entries, status.ActiveCount, lastSync, status.TotalMatches)
		return err
	}, "Wrote status")
}

// PrintHealth outputs classifier stage and catalog readiness.
func PrintHealth(health []schema.StageHealth, cfg *contract.Config) error {
	if cfg.Output == schema.JSONOut {
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, health)
		}, "Wrote JSON")
	}
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		if _, err := fmt.Fprintln(w, headerWithEmoji(cfg, "🩺", "Pipeline health")); err != nil {
			return err
		}
		for _, h := range health {
			mark := "ok"
			if !h.Available {
				mark = "unavailable"
			}
			line := fmt.Sprintf("  %-10s %s", h.Stage, mark)
			if h.Detail != "" {
				line += " (" + h.Detail + ")"
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}, "Wrote health")
}
