// Package files copies attachment files out of the note store's directory
// tree and writes exported notes, both through billy filesystems so the
// same code runs against the real disk and in-memory trees.
package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
)

// ErrSourceNotFound means no source root holds the requested file.
var ErrSourceNotFound = errors.New("attachment source not found")

// maxCollisions bounds the search for a free destination name.
const maxCollisions = 1000

// Request describes one attachment file to export.
type Request struct {
	// SourcePath is relative to each source root, slash separated.
	SourcePath string
	// Name is the display name, without extension.
	Name string
	// Ext is the file extension, with or without the leading dot.
	Ext string
	// NoteTitle prefixes the destination name to keep notes apart.
	NoteTitle string
	Created   time.Time
	Modified  time.Time
}

// Exporter copies attachment files from the first source root that has them
// into Dir on the destination filesystem.
type Exporter struct {
	sources []billy.Filesystem
	dest    billy.Filesystem
	dir     string
}

// NewExporter returns an Exporter writing into dir on dest.
func NewExporter(dest billy.Filesystem, dir string, sources ...billy.Filesystem) *Exporter {
	return &Exporter{sources: sources, dest: dest, dir: dir}
}

// Export copies the requested file and returns its slash-separated path
// relative to the destination root. An identical file already at the
// destination is reused rather than copied again.
func (e *Exporter) Export(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, info, err := e.locate(req.SourcePath)
	if err != nil {
		return "", err
	}

	if err := e.dest.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", e.dir, err)
	}

	base := Sanitize(req.NoteTitle) + " - " + Sanitize(req.Name)
	ext := strings.TrimPrefix(req.Ext, ".")
	if ext == "" {
		ext = strings.TrimPrefix(path.Ext(req.SourcePath), ".")
	}

	for i := 0; i < maxCollisions; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s (%d)", base, i+1)
		}
		if ext != "" {
			name += "." + ext
		}
		dst := path.Join(e.dir, name)

		existing, err := e.dest.Stat(dst)
		if err != nil {
			if !os.IsNotExist(err) {
				return "", fmt.Errorf("stat %s: %w", dst, err)
			}
			if err := copyFile(src, req.SourcePath, e.dest, dst); err != nil {
				return "", err
			}
			if err := SetTimes(e.dest, dst, req.Created, req.Modified); err != nil {
				return "", err
			}
			return dst, nil
		}

		same, err := sameContent(src, req.SourcePath, info, e.dest, dst, existing)
		if err != nil {
			return "", err
		}
		if same {
			return dst, nil
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", base, maxCollisions)
}

func (e *Exporter) locate(rel string) (billy.Filesystem, os.FileInfo, error) {
	for _, fs := range e.sources {
		info, err := fs.Stat(rel)
		if err == nil && !info.IsDir() {
			return fs, info, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrSourceNotFound, rel)
}

func copyFile(srcFS billy.Filesystem, src string, dstFS billy.Filesystem, dst string) error {
	in, err := srcFS.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := dstFS.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// sameContent compares sizes first and only reads both files when they match.
func sameContent(aFS billy.Filesystem, a string, aInfo os.FileInfo, bFS billy.Filesystem, b string, bInfo os.FileInfo) (bool, error) {
	if aInfo.Size() != bInfo.Size() {
		return false, nil
	}
	fa, err := aFS.Open(a)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", a, err)
	}
	defer func() { _ = fa.Close() }()
	fb, err := bFS.Open(b)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", b, err)
	}
	defer func() { _ = fb.Close() }()

	bufA := make([]byte, 32*1024)
	bufB := make([]byte, 32*1024)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		endA := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		endB := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		if endA || endB {
			return endA && endB, nil
		}
		if errA != nil {
			return false, fmt.Errorf("read %s: %w", a, errA)
		}
		if errB != nil {
			return false, fmt.Errorf("read %s: %w", b, errB)
		}
	}
}

// SetTimes applies a note's timestamp pair to name: the creation time as
// access time and the modification time as modification time. Filesystems
// without billy.Change support are left alone.
func SetTimes(fs billy.Filesystem, name string, created, modified time.Time) error {
	ch, ok := fs.(billy.Change)
	if !ok || modified.IsZero() {
		return nil
	}
	atime := created
	if atime.IsZero() {
		atime = modified
	}
	if err := ch.Chtimes(name, atime, modified); err != nil {
		return fmt.Errorf("set times on %s: %w", name, err)
	}
	return nil
}

// WriteFile writes data to name on fs, creating parent directories, and
// stamps it with the given times.
func WriteFile(fs billy.Filesystem, name string, data []byte, created, modified time.Time) error {
	if dir := path.Dir(name); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return SetTimes(fs, name, created, modified)
}
