// Package filetype classifies game asset paths by their extension.
package filetype

import (
	"path/filepath"
	"strings"
)

// Type is a coarse asset category used for listings and export handling.
type Type int

const (
	Unknown Type = iota
	Texture
	Model
	WorldModel
	Terrain
	Audio
	Interface
	Database
	Text
)

// String returns a human-readable category name.
func (t Type) String() string {
	switch t {
	case Texture:
		return "texture"
	case Model:
		return "model"
	case WorldModel:
		return "world model"
	case Terrain:
		return "terrain"
	case Audio:
		return "audio"
	case Interface:
		return "interface"
	case Database:
		return "database"
	case Text:
		return "text"
	default:
		return "unknown"
	}
}

// Detect returns the asset category for a path.
func Detect(path string) Type {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".blp", ".tga", ".bmp", ".jpg", ".png":
		return Texture
	case ".m2", ".mdx", ".mdl":
		return Model
	case ".wmo":
		return WorldModel
	case ".adt", ".wdt", ".wdl":
		return Terrain
	case ".wav", ".mp3", ".ogg":
		return Audio
	case ".xml", ".toc", ".ttf":
		return Interface
	case ".dbc", ".wdb":
		return Database
	case ".txt", ".lua", ".html", ".ini", ".wtf":
		return Text
	default:
		return Unknown
	}
}

// CountByType tallies paths per category.
func CountByType(paths []string) map[Type]int {
	counts := make(map[Type]int)
	for _, path := range paths {
		counts[Detect(path)]++
	}
	return counts
}
