package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/WowDevTools/everlook/pkg/mpq"
)

var packCmd = &cobra.Command{
	Use:   "pack <out.mpq> <src-dir>",
	Short: "Build an archive from a directory tree",
	Args:  cobra.ExactArgs(2),
	RunE:  runPack,
}

func runPack(cmd *cobra.Command, args []string) error {
	out, src := args[0], args[1]

	writer := mpq.NewWriter(out)
	count := 0

	err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		if err := writer.Add(filepath.ToSlash(rel), data); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}

	pterm.Success.Printfln("packed %d files into %s", count, out)
	return nil
}
