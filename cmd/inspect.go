package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"unicode/utf16"

	"github.com/spf13/cobra"

	"github.com/agentic-research/notesmd/internal/blob"
	"github.com/agentic-research/notesmd/internal/decode"
	"github.com/agentic-research/notesmd/internal/render"
	"github.com/agentic-research/notesmd/internal/store"
	"github.com/agentic-research/notesmd/internal/table"
)

var inspectDB string

func init() {
	listCmd.Flags().StringVar(&inspectDB, "db", "", "Path to NoteStore.sqlite")
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "Path to NoteStore.sqlite")
	tableCmd.Flags().StringVar(&inspectDB, "db", "", "Path to NoteStore.sqlite")
	inspectCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(listCmd, inspectCmd)
}

func openInspectStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if inspectDB != "" {
		cfg.Database = inspectDB
	}
	return openStore(cfg.Database)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes with their keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openInspectStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		notes, err := st.Notes(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "KEY\tMODIFIED\tTITLE")
		for _, n := range notes {
			modified := "-"
			if !n.Modified.IsZero() {
				modified = n.Modified.Local().Format("2006-01-02 15:04")
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", n.ID, modified, n.Title)
		}
		return w.Flush()
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <note-key>",
	Short: "Decode one note and print its text and attribute runs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid note key %q: %w", args[0], err)
		}
		st, err := openInspectStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		raw, err := st.NoteBody(cmd.Context(), id)
		if err != nil {
			return err
		}
		data, err := blob.Decompress(raw)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		note, err := decode.Decode(data)
		if errors.Is(err, decode.ErrContentExtraction) {
			_, _ = fmt.Fprintf(out, "decode failed: %v\n\nscraped text:\n%s\n", err, decode.Scrape(data, false))
			return nil
		}
		if err != nil {
			return err
		}
		printNote(out, note)
		return nil
	},
}

func printNote(out io.Writer, note *decode.Note) {
	_, _ = fmt.Fprintf(out, "text (%d UTF-16 units):\n%s\n\n", len(utf16.Encode([]rune(note.Text))), note.Text)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OFFSET\tLENGTH\tKIND\tIDENTIFIER\tTYPE")
	offset := 0
	for _, run := range note.Runs {
		kind, ident, tag := "text", "", ""
		if run.Attachment != nil {
			kind = render.Classify(run.Attachment.TypeTag).String()
			ident, tag = run.Attachment.Identifier, run.Attachment.TypeTag
		} else if run.Link != "" {
			kind, ident = "link", run.Link
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", offset, run.Length, kind, ident, tag)
		offset += run.Length
	}
	_ = w.Flush()
}

var tableCmd = &cobra.Command{
	Use:   "table <attachment-identifier>",
	Short: "Reconstruct a table attachment and print it as Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openInspectStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		data, err := st.TableData(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		grid, err := table.FromBlob(data)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d rows x %d columns\n\n%s", grid.Rows(), grid.Columns(), grid.Markdown())
		return nil
	},
}
