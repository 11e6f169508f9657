package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kdimtricp/copyscan/internal/patterns"
	"github.com/kdimtricp/copyscan/internal/report"
)

func newPatternsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Show the static catalog and the crowdsourced seed patterns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			catalog := patterns.StaticCatalog()

			fmt.Fprintln(out, "Static catalog")
			rows := make([][]string, 0, len(catalog.Audio)+len(catalog.Visual)+len(catalog.Metadata))
			for _, e := range catalog.Audio {
				rows = append(rows, catalogRow("audio", e))
			}
			for _, e := range catalog.Visual {
				rows = append(rows, catalogRow("visual", e))
			}
			for _, phrase := range catalog.Metadata {
				rows = append(rows, []string{"metadata", phrase, "", ""})
			}
			fmt.Fprintln(out, renderTable([]string{"Type", "Name", "Owner", "Confidence"}, rows, 4))

			seeds := patterns.SeedDefaults()
			fmt.Fprintln(out, "\nCrowdsourced seeds")
			rows = rows[:0]
			for _, p := range seeds.AudioPatterns {
				rows = append(rows, []string{"audio", p})
			}
			for _, p := range seeds.VisualPatterns {
				rows = append(rows, []string{"visual", p})
			}
			for _, kw := range seeds.MetadataKeywords {
				rows = append(rows, []string{"metadata", kw})
			}
			_, err := fmt.Fprintln(out, renderTable([]string{"Type", "Pattern"}, rows))
			return err
		},
	}
}

func catalogRow(kind string, e patterns.CatalogEntry) []string {
	return []string{kind, e.Name, e.Owner, strconv.Itoa(report.ConfidencePercent(e.Confidence)) + "%"}
}
