package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"

	"github.com/agentic-research/notesmd/api"
	"github.com/agentic-research/notesmd/internal/files"
	"github.com/agentic-research/notesmd/internal/ingest"
	"github.com/agentic-research/notesmd/internal/render"
	"github.com/agentic-research/notesmd/internal/store"
)

// attachmentsDir is where exported attachment files go, relative to the
// output directory.
const attachmentsDir = "attachments"

type exportFlags struct {
	database      string
	outputDir     string
	sources       []string
	keepFirstLine bool
	transcripts   bool
	manifest      bool
	incremental   bool
}

var exportOpts exportFlags

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.database, "db", "", "Path to NoteStore.sqlite")
	f.StringVarP(&exportOpts.outputDir, "out", "o", "", "Output directory")
	f.StringSliceVar(&exportOpts.sources, "source", nil, "Directory to search for attachment files (repeatable)")
	f.BoolVar(&exportOpts.keepFirstLine, "keep-first-line", false, "Keep each note's first line in the body")
	f.BoolVar(&exportOpts.transcripts, "transcripts", false, "Add handwriting transcripts above drawings")
	f.BoolVar(&exportOpts.manifest, "manifest", false, "Write manifest.json")
	f.BoolVar(&exportOpts.incremental, "incremental", false, "Skip notes unchanged since the last manifest")
	rootCmd.AddCommand(exportCmd)
}

// apply overrides cfg with the flags the user set explicitly.
func (o exportFlags) apply(cmd *cobra.Command, cfg *api.Config) {
	changed := cmd.Flags().Changed
	if changed("db") {
		cfg.Database = o.database
	}
	if changed("out") {
		cfg.OutputDir = o.outputDir
	}
	if changed("source") {
		cfg.SourceRoots = o.sources
	}
	if changed("keep-first-line") {
		cfg.SuppressFirstLine = !o.keepFirstLine
	}
	if changed("transcripts") {
		cfg.HandwritingTranscripts = o.transcripts
	}
	if changed("manifest") {
		cfg.Manifest = o.manifest
	}
	if changed("incremental") {
		cfg.Incremental = o.incremental
		if o.incremental {
			cfg.Manifest = true
		}
	}
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every note to a Markdown file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		exportOpts.apply(cmd, &cfg)

		st, err := openStore(cfg.Database)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		out := files.Disk(cfg.OutputDir)

		roots := cfg.SourceRoots
		if len(roots) == 0 {
			roots = sourceRoots(cfg.Database)
		}
		sources := make([]billy.Filesystem, 0, len(roots))
		for _, r := range roots {
			logger.Debug("attachment source", "root", r)
			sources = append(sources, files.Disk(r))
		}

		renderer := render.New(st,
			files.NewExporter(out, attachmentsDir, sources...),
			render.WithTranscripts(cfg.HandwritingTranscripts),
			render.WithLogger(logger),
		)
		engine := ingest.NewEngine(st, renderer, out, ingest.Options{
			SuppressFirstLine: cfg.SuppressFirstLine,
			Manifest:          cfg.Manifest,
			Incremental:       cfg.Incremental,
		}, logger)

		start := time.Now()
		fmt.Printf("Exporting %s to %s...\n", cfg.Database, cfg.OutputDir)
		stats, err := engine.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d notes (%d scraped, %d unchanged, %d failed) and %d attachments in %v.\n",
			stats.Processed.GetCardinality(),
			stats.Scraped.GetCardinality(),
			stats.Skipped.GetCardinality(),
			stats.Failed.GetCardinality(),
			stats.Attachments,
			time.Since(start).Round(time.Millisecond))
		if stats.Degraded > 0 {
			fmt.Printf("%d attachments could not be exported; see placeholders in the notes.\n", stats.Degraded)
		}
		return nil
	},
}

func openStore(path string) (*store.Store, error) {
	st, err := store.Open(path)
	if errors.Is(err, store.ErrAccessDenied) {
		return nil, fmt.Errorf("%w\n\nGrant your terminal Full Disk Access in System Settings > Privacy & Security, then retry", err)
	}
	return st, err
}

// sourceRoots lists where attachment files may live for a database: its own
// directory and each account directory beneath it.
func sourceRoots(database string) []string {
	dir := filepath.Dir(database)
	roots := []string{dir}
	accounts, _ := filepath.Glob(filepath.Join(dir, "Accounts", "*"))
	for _, a := range accounts {
		if info, err := os.Stat(a); err == nil && info.IsDir() {
			roots = append(roots, a)
		}
	}
	return roots
}
