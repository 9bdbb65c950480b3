package files

import (
	"os"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// diskFS is an osfs rooted at root that also implements billy.Change, so
// exported files can carry their note's timestamps.
type diskFS struct {
	billy.Filesystem
	root string
}

// Disk returns a filesystem rooted at the directory root.
func Disk(root string) billy.Filesystem {
	return &diskFS{Filesystem: osfs.New(root), root: root}
}

func (d *diskFS) abs(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *diskFS) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(d.abs(name), mode)
}

func (d *diskFS) Lchown(name string, uid, gid int) error {
	return os.Lchown(d.abs(name), uid, gid)
}

func (d *diskFS) Chown(name string, uid, gid int) error {
	return os.Chown(d.abs(name), uid, gid)
}

func (d *diskFS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(d.abs(name), atime, mtime)
}
