package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var whichCmd = &cobra.Command{
	Use:   "which <game-dir> <path>...",
	Short: "Show which archive wins override resolution for a path",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runWhich,
}

func runWhich(cmd *cobra.Command, args []string) error {
	group, err := openGroup(args[0])
	if err != nil {
		return err
	}
	defer group.Close()

	for _, path := range args[1:] {
		winner := group.Resolve(path)
		if winner == nil {
			pterm.Warning.Printfln("%s: not found", path)
			continue
		}

		pterm.Printfln("%s: %s", path, winner.Name())

		// Show shadowed copies in override order.
		for _, archive := range group.Archives() {
			if archive.Name() != winner.Name() && archive.Contains(path) {
				pterm.Printfln("    shadowed in %s", archive.Name())
			}
		}
	}

	return nil
}
