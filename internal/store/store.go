// Package store reads notes and attachment metadata from a NoteStore.sqlite
// database. The database is only ever opened read-only.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrAccessDenied means the database exists but this process may not read
	// it (on macOS: the terminal lacks Full Disk Access). It is fatal to a run.
	ErrAccessDenied = errors.New("note store is not readable")
	// ErrNotFound is returned when an identifier has no row.
	ErrNotFound = errors.New("not found")
)

// appleEpochOffset is the number of seconds between the Unix epoch and
// 2001-01-01T00:00:00Z, the reference date of the note store's timestamps.
const appleEpochOffset = 978307200

// AppleTime converts a note store timestamp to a time.Time.
func AppleTime(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	whole := int64(sec)
	nanos := int64((sec - float64(whole)) * 1e9)
	return time.Unix(whole+appleEpochOffset, nanos).UTC()
}

// Note is a note row's metadata.
type Note struct {
	ID       int64
	Title    string
	Created  time.Time
	Modified time.Time
}

// Link is the stored title and URL of a link card attachment.
type Link struct {
	Title string
	URL   string
}

// Attachment carries the fields that determine where an attachment's file
// lives and how it is named.
type Attachment struct {
	Identifier         string
	TypeUTI            string
	Title              string
	FallbackGeneration string
	PDFGeneration      string
	Width              int
	Height             int
	Handwriting        string
	MediaIdentifier    string
	MediaFilename      string
	MediaGeneration    string
}

// Store is an open note store.
type Store struct {
	db        *sql.DB
	path      string
	createdAt string // creation-date column; varies across releases
}

// Open opens the database at path read-only.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAccessDenied, path, err)
		}
		return nil, fmt.Errorf("stat note store: %w", err)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return nil, fmt.Errorf("%w: %s: %v", ErrAccessDenied, path, err)
		}
		return nil, fmt.Errorf("access note store: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
		_ = db.Close()
		return nil, classify(path, fmt.Errorf("set query_only: %w", err))
	}

	s := &Store{db: db, path: path}
	if err := s.probe(); err != nil {
		_ = db.Close()
		return nil, classify(path, err)
	}
	return s, nil
}

// classify turns sqlite's permission failures into ErrAccessDenied.
func classify(path string, err error) error {
	if deniedCode(err) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", ErrAccessDenied, path, err)
	}
	return err
}

// deniedCode reports whether err carries a sqlite result code meaning the
// file could not be opened or read. Extended codes are reduced to their
// primary code.
func deniedCode(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM, sqlite3.SQLITE_CANTOPEN:
		return true
	}
	return false
}

// probe picks the creation-date column this database version has.
func (s *Store) probe() error {
	rows, err := s.db.Query("PRAGMA table_info(ZICCLOUDSYNCINGOBJECT)")
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("scan schema: %w", err)
		}
		cols[strings.ToUpper(name)] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate schema: %w", err)
	}
	if len(cols) == 0 {
		return fmt.Errorf("%s has no ZICCLOUDSYNCINGOBJECT table", s.path)
	}
	for _, c := range []string{"ZCREATIONDATE3", "ZCREATIONDATE1", "ZCREATIONDATE"} {
		if cols[c] {
			s.createdAt = c
			break
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Notes lists every note that has a body, oldest key first. Notes marked for
// deletion are skipped.
func (s *Store) Notes(ctx context.Context) ([]Note, error) {
	created := "NULL"
	if s.createdAt != "" {
		created = "o." + s.createdAt
	}
	q := `SELECT o.Z_PK, o.ZTITLE1, ` + created + `, o.ZMODIFICATIONDATE1
		FROM ZICCLOUDSYNCINGOBJECT o
		WHERE o.ZNOTEDATA IS NOT NULL
		  AND (o.ZMARKEDFORDELETION IS NULL OR o.ZMARKEDFORDELETION != 1)
		ORDER BY o.Z_PK`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, classify(s.path, fmt.Errorf("query notes: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var notes []Note
	for rows.Next() {
		var (
			n                 Note
			title             sql.NullString
			created, modified sql.NullFloat64
		)
		if err := rows.Scan(&n.ID, &title, &created, &modified); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.Title = title.String
		n.Created = AppleTime(created.Float64)
		n.Modified = AppleTime(modified.Float64)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

// NoteBody returns the compressed body of note id.
func (s *Store) NoteBody(ctx context.Context, id int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT ZDATA FROM ZICNOTEDATA WHERE ZNOTE = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, fmt.Errorf("body of note %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("body of note %d: %w", id, err)
	}
	return data, nil
}

// AltText returns the display text of an inline attachment (hashtag or
// mention), or "" when none is stored.
func (s *Store) AltText(ctx context.Context, identifier string) (string, error) {
	var alt sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT ZALTTEXT FROM ZICCLOUDSYNCINGOBJECT WHERE ZIDENTIFIER = ?", identifier).Scan(&alt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("alt text %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("alt text %s: %w", identifier, err)
	}
	return alt.String, nil
}

// Link returns a link card's title and URL.
func (s *Store) Link(ctx context.Context, identifier string) (Link, error) {
	var title, url sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT ZTITLE, ZURLSTRING FROM ZICCLOUDSYNCINGOBJECT WHERE ZIDENTIFIER = ?", identifier).Scan(&title, &url)
	if errors.Is(err, sql.ErrNoRows) {
		return Link{}, fmt.Errorf("link %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return Link{}, fmt.Errorf("link %s: %w", identifier, err)
	}
	return Link{Title: title.String, URL: url.String}, nil
}

// TableData returns the compressed mergeable data of a table attachment.
func (s *Store) TableData(ctx context.Context, identifier string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT ZMERGEABLEDATA1 FROM ZICCLOUDSYNCINGOBJECT WHERE ZIDENTIFIER = ?", identifier).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, fmt.Errorf("table %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", identifier, err)
	}
	return data, nil
}

// Attachment returns the file-locating metadata of an attachment and its
// media row, if it has one.
func (s *Store) Attachment(ctx context.Context, identifier string) (Attachment, error) {
	const q = `SELECT a.ZIDENTIFIER, a.ZTYPEUTI, a.ZTITLE,
			a.ZFALLBACKIMAGEGENERATION, a.ZFALLBACKPDFGENERATION,
			a.ZSIZEWIDTH, a.ZSIZEHEIGHT, a.ZHANDWRITINGSUMMARY,
			m.ZIDENTIFIER, m.ZFILENAME, m.ZGENERATION1
		FROM ZICCLOUDSYNCINGOBJECT a
		LEFT JOIN ZICCLOUDSYNCINGOBJECT m ON m.Z_PK = a.ZMEDIA
		WHERE a.ZIDENTIFIER = ?`

	var (
		a                                  Attachment
		uti, title, fallbackGen, pdfGen    sql.NullString
		handwriting, mediaID, file, medGen sql.NullString
		width, height                      sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, q, identifier).Scan(
		&a.Identifier, &uti, &title,
		&fallbackGen, &pdfGen,
		&width, &height, &handwriting,
		&mediaID, &file, &medGen,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Attachment{}, fmt.Errorf("attachment %s: %w", identifier, ErrNotFound)
	}
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment %s: %w", identifier, err)
	}
	a.TypeUTI = uti.String
	a.Title = title.String
	a.FallbackGeneration = fallbackGen.String
	a.PDFGeneration = pdfGen.String
	a.Width = int(width.Float64)
	a.Height = int(height.Float64)
	a.Handwriting = handwriting.String
	a.MediaIdentifier = mediaID.String
	a.MediaFilename = file.String
	a.MediaGeneration = medGen.String
	return a, nil
}
