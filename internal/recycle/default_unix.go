//go:build !windows && !darwin

package recycle

// Default returns the recycler for this platform: the user's freedesktop
// trash, or Inert when no home directory can be resolved.
func Default() Recycler {
	dir, err := HomeTrashDir()
	if err != nil {
		return Inert{}
	}
	return NewFreedesktopTrash(dir)
}
