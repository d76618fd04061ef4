package main

import (
	"fmt"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/WowDevTools/everlook/pkg/filetype"
)

var infoCmd = &cobra.Command{
	Use:   "info <game-dir>",
	Short: "Show package group information",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	group, err := openGroup(args[0])
	if err != nil {
		return err
	}
	defer group.Close()

	table := pterm.TableData{{"Archive", "Entries", "Listed"}}
	for _, archive := range group.Archives() {
		listing, _ := group.Listing(archive.Name())
		table = append(table, []string{
			archive.Name(),
			fmt.Sprintf("%d", archive.Count()),
			fmt.Sprintf("%d", len(listing)),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
		return err
	}

	for _, skip := range group.Skipped() {
		pterm.Warning.Printfln("skipped %s: %v", skip.Path, skip.Err)
	}

	merged := group.MergedFileList()
	pterm.Printfln("\n%d files across %d archives", len(merged), len(group.Archives()))

	counts := filetype.CountByType(merged)
	type typeStat struct {
		kind  filetype.Type
		count int
	}
	stats := make([]typeStat, 0, len(counts))
	for kind, count := range counts {
		stats = append(stats, typeStat{kind, count})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].count > stats[j].count
	})

	pterm.Println("\nFiles by type:")
	for _, s := range stats {
		pterm.Printfln("  %-12s %d", s.kind, s.count)
	}

	return nil
}
