package main

import (
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var listLimit int

var listCmd = &cobra.Command{
	Use:     "list <game-dir> [pattern]",
	Aliases: []string{"ls"},
	Short:   "List files in the merged namespace",
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runList,
}

func init() {
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "limit output to N files (0 = all)")
}

func runList(cmd *cobra.Command, args []string) error {
	group, err := openGroup(args[0])
	if err != nil {
		return err
	}
	defer group.Close()

	pattern := ""
	if len(args) > 1 {
		pattern = strings.ToLower(args[1])
	}

	count := 0
	for _, path := range group.MergedFileList() {
		if pattern != "" && !matchesPattern(path, pattern) {
			continue
		}
		pterm.Println(path)
		count++
		if listLimit > 0 && count >= listLimit {
			break
		}
	}

	if pattern != "" {
		pterm.Info.Printfln("%d files matched", count)
	}
	return nil
}

// matchesPattern accepts a glob against the base name or a plain substring
// of the whole path, both case-insensitive.
func matchesPattern(path, pattern string) bool {
	lower := strings.ToLower(path)
	if matched, _ := filepath.Match(pattern, filepath.Base(lower)); matched {
		return true
	}
	return strings.Contains(lower, pattern)
}
