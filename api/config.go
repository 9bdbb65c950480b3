// Package api defines the user-facing configuration of an export run.
package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultConfigFile is looked up in the working directory when no config
// file is named.
const DefaultConfigFile = "notesmd.hcl"

// Config is the resolved configuration of an export run.
type Config struct {
	// Database is the path to NoteStore.sqlite.
	Database string
	// OutputDir receives one Markdown file per note plus attachments/.
	OutputDir string
	// SourceRoots are searched, in order, for attachment files. Empty means
	// the database's directory and its Accounts/* subdirectories.
	SourceRoots []string
	// SuppressFirstLine drops the first line of each body, which repeats
	// the title.
	SuppressFirstLine bool
	// HandwritingTranscripts adds recognized handwriting above drawings.
	HandwritingTranscripts bool
	// Manifest writes manifest.json next to the notes.
	Manifest bool
	// Incremental skips notes unchanged since the previous manifest. It
	// implies Manifest.
	Incremental bool
}

// file is the on-disk shape. Pointers tell an absent attribute apart from
// an explicit zero so that only what the file sets overrides the defaults.
type file struct {
	Database               *string  `hcl:"database,optional"`
	OutputDir              *string  `hcl:"output_dir,optional"`
	SourceRoots            []string `hcl:"source_roots,optional"`
	SuppressFirstLine      *bool    `hcl:"suppress_first_line,optional"`
	HandwritingTranscripts *bool    `hcl:"handwriting_transcripts,optional"`
	Manifest               *bool    `hcl:"manifest,optional"`
	Incremental            *bool    `hcl:"incremental,optional"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Database:          defaultDatabase(),
		OutputDir:         "notes",
		SuppressFirstLine: true,
	}
}

func defaultDatabase() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "Group Containers", "group.com.apple.notes", "NoteStore.sqlite")
}

// LoadConfig reads an HCL config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	var f file
	if err := hclsimple.DecodeFile(path, nil, &f); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	f.apply(&cfg)
	return cfg, nil
}

func (f file) apply(cfg *Config) {
	if f.Database != nil {
		cfg.Database = ExpandHome(*f.Database)
	}
	if f.OutputDir != nil {
		cfg.OutputDir = ExpandHome(*f.OutputDir)
	}
	if f.SourceRoots != nil {
		cfg.SourceRoots = make([]string, len(f.SourceRoots))
		for i, r := range f.SourceRoots {
			cfg.SourceRoots[i] = ExpandHome(r)
		}
	}
	if f.SuppressFirstLine != nil {
		cfg.SuppressFirstLine = *f.SuppressFirstLine
	}
	if f.HandwritingTranscripts != nil {
		cfg.HandwritingTranscripts = *f.HandwritingTranscripts
	}
	if f.Manifest != nil {
		cfg.Manifest = *f.Manifest
	}
	if f.Incremental != nil {
		cfg.Incremental = *f.Incremental
	}
	if cfg.Incremental {
		cfg.Manifest = true
	}
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
