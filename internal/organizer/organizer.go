// Package organizer performs the copy-then-verify transaction that moves
// documents into the archive. Removal of the original is never part of a copy;
// callers remove or recycle it explicitly once verification has passed.
package organizer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MoveErrorType represents the type of move error.
type MoveErrorType string

const (
	// SourceMissing indicates the source file does not exist or is not a regular file.
	SourceMissing MoveErrorType = "SOURCE_MISSING"
	// DestinationExists indicates a file already exists at the destination.
	DestinationExists MoveErrorType = "DESTINATION_EXISTS"
	// VerificationFailed indicates the copy is missing or has the wrong size.
	VerificationFailed MoveErrorType = "VERIFICATION_FAILED"
	// CopyFailed indicates an I/O failure while copying.
	CopyFailed MoveErrorType = "COPY_FAILED"
	// RemoveFailed indicates the original could not be removed.
	RemoveFailed MoveErrorType = "REMOVE_FAILED"
	// PermissionDenied indicates insufficient permissions for the operation.
	PermissionDenied MoveErrorType = "PERMISSION_DENIED"
)

// MoveError represents an error that occurred during a transaction step.
type MoveError struct {
	Type MoveErrorType
	Path string
	Err  error
}

func (e *MoveError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is a MoveError of the given type.
func IsType(err error, t MoveErrorType) bool {
	var me *MoveError
	return errors.As(err, &me) && me.Type == t
}

// Action describes what a copy did or would do.
type Action string

const (
	ActionCopy      Action = "copy"
	ActionOverwrite Action = "overwrite"
)

// CopyResult represents the result of a copy.
type CopyResult struct {
	SourcePath      string
	DestinationPath string
	Action          Action
	Size            int64
	ContentHash     string // SHA-256 of the bytes written; empty on dry run
	DryRun          bool
}

// Mover copies documents and verifies the copies.
type Mover struct{}

// NewMover creates a Mover.
func NewMover() *Mover {
	return &Mover{}
}

// Copy copies source to destination and verifies that the destination exists
// with the size the source had when Copy was called. A pre-existing
// destination is an error unless allowOverwrite is set. In dry-run mode every
// precondition is checked and nothing is written.
//
// On verification failure the destination is left in place.
func (m *Mover) Copy(source, destination string, dryRun, allowOverwrite bool) (*CopyResult, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &MoveError{Type: SourceMissing, Path: source, Err: err}
		}
		if os.IsPermission(err) {
			return nil, &MoveError{Type: PermissionDenied, Path: source, Err: err}
		}
		return nil, &MoveError{Type: SourceMissing, Path: source, Err: err}
	}
	if !srcInfo.Mode().IsRegular() {
		return nil, &MoveError{Type: SourceMissing, Path: source, Err: errors.New("not a regular file")}
	}

	action := ActionCopy
	if dstInfo, err := os.Stat(destination); err == nil {
		if dstInfo.IsDir() {
			return nil, &MoveError{Type: DestinationExists, Path: destination, Err: errors.New("destination is a directory")}
		}
		if !allowOverwrite {
			return nil, &MoveError{Type: DestinationExists, Path: destination}
		}
		action = ActionOverwrite
	}

	result := &CopyResult{
		SourcePath:      source,
		DestinationPath: destination,
		Action:          action,
		Size:            srcInfo.Size(),
		DryRun:          dryRun,
	}
	if dryRun {
		return result, nil
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		if os.IsPermission(err) {
			return nil, &MoveError{Type: PermissionDenied, Path: filepath.Dir(destination), Err: err}
		}
		return nil, &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}

	hash, err := copyFile(source, destination, srcInfo)
	if err != nil {
		return nil, err
	}
	result.ContentHash = hash

	if err := m.verifySize(destination, srcInfo.Size()); err != nil {
		return nil, err
	}

	return result, nil
}

// Verify re-checks that destination exists and matches the current size of
// source.
func (m *Mover) Verify(source, destination string) error {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return &MoveError{Type: SourceMissing, Path: source, Err: err}
	}
	return m.verifySize(destination, srcInfo.Size())
}

func (m *Mover) verifySize(destination string, want int64) error {
	info, err := os.Stat(destination)
	if err != nil {
		return &MoveError{Type: VerificationFailed, Path: destination, Err: err}
	}
	if info.Size() != want {
		return &MoveError{
			Type: VerificationFailed,
			Path: destination,
			Err:  fmt.Errorf("size mismatch: expected %d bytes, found %d", want, info.Size()),
		}
	}
	return nil
}

// Remove deletes path. It is only used for originals whose copies have been
// verified; dry runs check that the path exists and change nothing.
func (m *Mover) Remove(path string, dryRun bool) error {
	if _, err := os.Stat(path); err != nil {
		return &MoveError{Type: SourceMissing, Path: path, Err: err}
	}
	if dryRun {
		return nil
	}
	if err := os.Remove(path); err != nil {
		if os.IsPermission(err) {
			return &MoveError{Type: PermissionDenied, Path: path, Err: err}
		}
		return &MoveError{Type: RemoveFailed, Path: path, Err: err}
	}
	return nil
}

// copyFile writes source into a temporary file beside destination, then
// renames it into place so a failed copy never leaves a partial destination.
// Mode and modification time are preserved.
func copyFile(source, destination string, srcInfo os.FileInfo) (string, error) {
	in, err := os.Open(source)
	if err != nil {
		if os.IsPermission(err) {
			return "", &MoveError{Type: PermissionDenied, Path: source, Err: err}
		}
		return "", &MoveError{Type: CopyFailed, Path: source, Err: err}
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(destination), ".memarchive-*.tmp")
	if err != nil {
		if os.IsPermission(err) {
			return "", &MoveError{Type: PermissionDenied, Path: destination, Err: err}
		}
		return "", &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), in); err != nil {
		cleanup()
		return "", &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}

	if err := os.Chmod(tmpPath, srcInfo.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return "", &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}
	if err := os.Chtimes(tmpPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		os.Remove(tmpPath)
		return "", &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		os.Remove(tmpPath)
		return "", &MoveError{Type: CopyFailed, Path: destination, Err: err}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
