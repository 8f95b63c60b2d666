package fileutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// maxContentStamp bounds how much of a regular file a stamp remembers.
const maxContentStamp = 4096

// Stamp records the identity of a file at the moment it was created so a
// later cleanup can tell whether the path still refers to the same file.
//
// Inode numbers are reused as soon as a file is freed, so the stamp also
// keeps the change time and, for small regular files, the content. A file
// removed and recreated by another process fails at least one of them.
type Stamp struct {
	path    string
	valid   bool
	dev     uint64
	ino     uint64
	ctime   unix.Timespec
	content []byte
}

// StampPath captures the identity of the file currently at path.
func StampPath(path string) (Stamp, error) {
	id, err := identify(path)
	if err != nil {
		return Stamp{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return id, nil
}

func identify(path string) (Stamp, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Stamp{}, err
	}
	id := Stamp{
		path:  path,
		valid: true,
		dev:   uint64(st.Dev),
		ino:   uint64(st.Ino),
		ctime: st.Ctim,
	}
	if st.Mode&unix.S_IFMT == unix.S_IFREG && st.Size <= maxContentStamp {
		data, err := os.ReadFile(path)
		if err != nil {
			return Stamp{}, err
		}
		id.content = data
	}
	return id, nil
}

// Owned reports whether path still refers to the stamped file.
func (s Stamp) Owned() bool {
	if !s.valid {
		return false
	}
	current, err := identify(s.path)
	if err != nil {
		return false
	}
	return current.dev == s.dev &&
		current.ino == s.ino &&
		current.ctime == s.ctime &&
		bytes.Equal(current.content, s.content)
}

// RemoveIfOwned deletes the file only when it is still the stamped one. A
// path that was replaced by another process is left alone and reported as
// not removed.
func (s Stamp) RemoveIfOwned() (bool, error) {
	if !s.Owned() {
		return false, nil
	}
	if err := os.Remove(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Exists reports whether anything is present at path, following no links.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// WriteFileAtomic writes data to a temporary sibling and renames it over
// path, so readers never see a partially written file.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
