package recycle

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FreedesktopTrash implements the freedesktop.org trash layout:
// files go to <dir>/files and a .trashinfo record goes to <dir>/info.
// Files on another filesystem than dir go to the trash at the top of their
// own volume, $topdir/.Trash-$uid, since a rename cannot cross devices.
type FreedesktopTrash struct {
	dir    string
	now    func() time.Time
	rename func(oldpath, newpath string) error
	topdir func(path string) (string, error)
}

// NewFreedesktopTrash creates a trash rooted at dir.
func NewFreedesktopTrash(dir string) *FreedesktopTrash {
	return &FreedesktopTrash{dir: dir, now: time.Now, rename: os.Rename, topdir: mountTop}
}

// HomeTrashDir returns $XDG_DATA_HOME/Trash, defaulting to ~/.local/share/Trash.
func HomeTrashDir() (string, error) {
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "Trash"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "Trash"), nil
}

// Name implements Recycler.
func (t *FreedesktopTrash) Name() string { return "freedesktop" }

// Dir returns the trash root.
func (t *FreedesktopTrash) Dir() string { return t.dir }

// Recycle implements Recycler.
func (t *FreedesktopTrash) Recycle(path string, dryRun bool) (Result, error) {
	if err := requireExists(path); err != nil {
		return Result{Path: path}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Path: path}, failed(path, err)
	}

	if dryRun {
		return Result{
			Path:     path,
			Location: filepath.Join(t.dir, "files", filepath.Base(abs)),
			Message:  "would move to trash",
			DryRun:   true,
		}, nil
	}

	target, err := t.moveInto(t.dir, abs, abs)
	message := "moved to trash"
	if err != nil && isCrossDevice(err) {
		target, err = t.moveToVolumeTrash(abs)
		message = "moved to volume trash"
	}
	if err != nil {
		return Result{Path: path}, failed(path, err)
	}

	return Result{
		Path:     path,
		Recycled: true,
		Location: target,
		Message:  message,
	}, nil
}

// moveToVolumeTrash moves abs into $topdir/.Trash-$uid of its own volume.
// The recorded original path is relative to topdir.
func (t *FreedesktopTrash) moveToVolumeTrash(abs string) (string, error) {
	top, err := t.topdir(abs)
	if err != nil {
		return "", fmt.Errorf("%s is on another device than %s: %w", abs, t.dir, err)
	}
	rel, err := filepath.Rel(top, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is not below mount point %s", abs, top)
	}

	dir := filepath.Join(top, fmt.Sprintf(".Trash-%d", os.Getuid()))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	fi, err := os.Lstat(dir)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() || fi.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("volume trash %s is not a directory", dir)
	}
	return t.moveInto(dir, abs, filepath.ToSlash(rel))
}

// moveInto renames abs into trashDir/files after reserving its .trashinfo
// record. recorded is the Path written to the record.
func (t *FreedesktopTrash) moveInto(trashDir, abs, recorded string) (string, error) {
	filesDir := filepath.Join(trashDir, "files")
	infoDir := filepath.Join(trashDir, "info")
	for _, d := range []string{filesDir, infoDir} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return "", err
		}
	}

	name, infoFile, err := t.reserveInfo(trashDir, filepath.Base(abs), recorded)
	if err != nil {
		return "", err
	}

	target := filepath.Join(filesDir, name)
	if err := t.rename(abs, target); err != nil {
		os.Remove(infoFile)
		return "", err
	}
	return target, nil
}

// reserveInfo creates the .trashinfo file exclusively, picking a unique name
// when an entry with the same base name is already in the trash.
func (t *FreedesktopTrash) reserveInfo(trashDir, base, original string) (string, string, error) {
	infoDir := filepath.Join(trashDir, "info")
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; i < 1000; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s.%d%s", stem, i, ext)
		}
		if _, err := os.Lstat(filepath.Join(trashDir, "files", name)); err == nil {
			continue
		}
		infoFile := filepath.Join(infoDir, name+".trashinfo")

		f, err := os.OpenFile(infoFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", err
		}

		escaped := (&url.URL{Path: original}).EscapedPath()
		_, werr := fmt.Fprintf(f, "[Trash Info]\nPath=%s\nDeletionDate=%s\n",
			escaped, t.now().Format("2006-01-02T15:04:05"))
		cerr := f.Close()
		if werr != nil || cerr != nil {
			os.Remove(infoFile)
			return "", "", errors.Join(werr, cerr)
		}
		return name, infoFile, nil
	}

	return "", "", fmt.Errorf("too many trash entries named %s", base)
}
