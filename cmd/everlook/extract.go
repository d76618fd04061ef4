package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/woozymasta/pathrules"
)

var (
	extractOutput  string
	extractInclude []string
	extractExclude []string
	extractFlat    bool
)

var extractCmd = &cobra.Command{
	Use:     "extract <game-dir> [path...]",
	Aliases: []string{"x"},
	Short:   "Extract files from the merged namespace",
	Long: `Extract files from the merged namespace.

With explicit paths only those files are extracted. Without paths the merged
file list is filtered with --include/--exclude rules ("**" and "*" globs),
which allows bulk extraction of whole subtrees or extensions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output directory (default from config)")
	extractCmd.Flags().StringArrayVar(&extractInclude, "include", nil, "include rule for bulk extraction")
	extractCmd.Flags().StringArrayVar(&extractExclude, "exclude", nil, "exclude rule for bulk extraction")
	extractCmd.Flags().BoolVar(&extractFlat, "flat", false, "drop directory structure on extraction")
}

func runExtract(cmd *cobra.Command, args []string) error {
	group, err := openGroup(args[0])
	if err != nil {
		return err
	}
	defer group.Close()

	outputDir := extractOutput
	if outputDir == "" {
		outputDir = cfg.Export.OutputDir
	}
	preserve := cfg.Export.PreservePaths && !extractFlat

	targets := args[1:]
	if len(targets) == 0 {
		if len(extractInclude) == 0 {
			return fmt.Errorf("no paths given: pass files to extract or --include rules")
		}
		targets, err = filterTargets(group.MergedFileList(), extractInclude, extractExclude)
		if err != nil {
			return err
		}
	}
	if len(targets) == 0 {
		pterm.Warning.Println("nothing to extract")
		return nil
	}

	bar, _ := pterm.DefaultProgressbar.WithTotal(len(targets)).Start("extracting")

	extracted := 0
	for _, path := range targets {
		bar.UpdateTitle(filepath.Base(path))

		data, ok := group.Extract(path)
		if !ok {
			pterm.Warning.Printfln("not found: %s", path)
			bar.Increment()
			continue
		}

		outPath, err := outputPath(outputDir, path, preserve)
		if err != nil {
			pterm.Warning.Printfln("skipping %s: %v", path, err)
			bar.Increment()
			continue
		}

		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}

		extracted++
		bar.Increment()
	}
	bar.Stop()

	pterm.Success.Printfln("extracted %d of %d files to %s", extracted, len(targets), outputDir)
	return nil
}

// filterTargets applies include/exclude rules to the merged list.
func filterTargets(paths []string, include, exclude []string) ([]string, error) {
	rules := make([]pathrules.Rule, 0, len(include)+len(exclude))
	for _, pattern := range include {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: pattern})
	}
	for _, pattern := range exclude {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: pattern})
	}

	matcher, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
		return nil, fmt.Errorf("compiling extraction rules: %w", err)
	}

	var targets []string
	for _, path := range paths {
		if matcher.Included(path, false) {
			targets = append(targets, path)
		}
	}
	return targets, nil
}

// outputPath maps an archive entry path onto the destination directory,
// rejecting entries that would escape it.
func outputPath(destDir, entryPath string, preserve bool) (string, error) {
	rel := strings.ReplaceAll(entryPath, "\\", "/")
	if !preserve {
		rel = filepath.Base(rel)
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry path escapes destination")
	}

	return filepath.Join(destDir, clean), nil
}
