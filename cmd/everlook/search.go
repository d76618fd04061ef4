package main

import (
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:     "search <game-dir> <term>",
	Aliases: []string{"find"},
	Short:   "Search the merged file list by substring",
	Args:    cobra.ExactArgs(2),
	RunE:    runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "limit results (0 = all)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	group, err := openGroup(args[0])
	if err != nil {
		return err
	}
	defer group.Close()

	term := strings.ToLower(args[1])

	count := 0
	for _, path := range group.MergedFileList() {
		if !strings.Contains(strings.ToLower(path), term) {
			continue
		}
		pterm.Println(path)
		count++
		if searchLimit > 0 && count >= searchLimit {
			pterm.Info.Printfln("showing first %d matches, use -n 0 for all", searchLimit)
			return nil
		}
	}

	if count == 0 {
		pterm.Warning.Println("no files found")
	} else {
		pterm.Info.Printfln("%d files found", count)
	}
	return nil
}
