// everlook is a CLI utility for browsing and extracting World of Warcraft
// game data. It treats a game directory as one package group: every archive
// under it is merged into a single namespace where later-named patch archives
// override earlier ones.
package main

import "os"

func main() {
	err := rootCmd.Execute()
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		os.Exit(1)
	}
}
