// Package recycle moves archived originals to a recoverable location.
//
// Recycling never deletes permanently. Platforms without a trash facility get
// the Inert recycler, which reports success and leaves the file in place for
// manual cleanup.
package recycle

import (
	"errors"
	"fmt"
	"os"
)

// ErrRecycleFailed is wrapped by every recycle failure.
var ErrRecycleFailed = errors.New("RECYCLE_FAILED")

// Result describes the outcome of one recycle call.
type Result struct {
	Path          string
	Recycled      bool   // the file now lives in a recoverable trash location
	ManualCleanup bool   // the file was left in place and must be removed by hand
	Location      string // where the file went, when known
	Message       string
	DryRun        bool
}

// Recycler moves a file to a recoverable trash.
type Recycler interface {
	// Name identifies the implementation in logs and reports.
	Name() string
	// Recycle moves path to the trash. The returned error wraps
	// ErrRecycleFailed; the original is left in place on failure.
	Recycle(path string, dryRun bool) (Result, error)
}

// Inert is the recycler for platforms without a trash facility.
type Inert struct{}

// Name implements Recycler.
func (Inert) Name() string { return "inert" }

// Recycle implements Recycler. It never modifies the filesystem.
func (Inert) Recycle(path string, dryRun bool) (Result, error) {
	if err := requireExists(path); err != nil {
		return Result{Path: path}, err
	}
	return Result{
		Path:          path,
		ManualCleanup: true,
		Message:       "no trash facility on this platform, manual cleanup required",
		DryRun:        dryRun,
	}, nil
}

func requireExists(path string) error {
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRecycleFailed, path, err)
	}
	return nil
}

func failed(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRecycleFailed, path, err)
}
