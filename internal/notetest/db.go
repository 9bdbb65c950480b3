package notetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Schema is the subset of NoteStore.sqlite the store reads.
const Schema = `
CREATE TABLE ZICCLOUDSYNCINGOBJECT (
	Z_PK INTEGER PRIMARY KEY,
	ZIDENTIFIER VARCHAR,
	ZTITLE VARCHAR,
	ZTITLE1 VARCHAR,
	ZCREATIONDATE1 TIMESTAMP,
	ZMODIFICATIONDATE1 TIMESTAMP,
	ZNOTEDATA INTEGER,
	ZMARKEDFORDELETION INTEGER,
	ZALTTEXT VARCHAR,
	ZURLSTRING VARCHAR,
	ZMERGEABLEDATA1 BLOB,
	ZTYPEUTI VARCHAR,
	ZMEDIA INTEGER,
	ZFILENAME VARCHAR,
	ZGENERATION1 VARCHAR,
	ZFALLBACKIMAGEGENERATION VARCHAR,
	ZFALLBACKPDFGENERATION VARCHAR,
	ZSIZEWIDTH INTEGER,
	ZSIZEHEIGHT INTEGER,
	ZHANDWRITINGSUMMARY VARCHAR
);
CREATE TABLE ZICNOTEDATA (Z_PK INTEGER PRIMARY KEY, ZNOTE INTEGER, ZDATA BLOB);
`

// NoteStore creates an empty NoteStore.sqlite in a temporary directory and
// returns its path with an open handle for seeding rows.
func NoteStore(t testing.TB) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "NoteStore.sqlite")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return path, db
}

// AddNote inserts a note row and its body. Dates are note store seconds.
func AddNote(t testing.TB, db *sql.DB, id int64, title string, created, modified float64, body []byte) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO ZICCLOUDSYNCINGOBJECT
		(Z_PK, ZTITLE1, ZCREATIONDATE1, ZMODIFICATIONDATE1, ZNOTEDATA) VALUES (?, ?, ?, ?, ?)`,
		id, title, created, modified, id)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO ZICNOTEDATA (ZNOTE, ZDATA) VALUES (?, ?)`, id, body)
	require.NoError(t, err)
}
