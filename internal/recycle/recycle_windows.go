//go:build windows

package recycle

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	foDelete          = 0x0003
	fofSilent         = 0x0004
	fofNoConfirmation = 0x0010
	fofAllowUndo      = 0x0040
	fofNoErrorUI      = 0x0400
)

// shFileOpStruct mirrors SHFILEOPSTRUCTW.
type shFileOpStruct struct {
	hwnd                  uintptr
	wFunc                 uint32
	pFrom                 *uint16
	pTo                   *uint16
	fFlags                uint16
	fAnyOperationsAborted int32
	hNameMappings         uintptr
	lpszProgressTitle     *uint16
}

var (
	shell32              = windows.NewLazySystemDLL("shell32.dll")
	procSHFileOperationW = shell32.NewProc("SHFileOperationW")
)

// WindowsRecycler sends files to the Windows Recycle Bin.
type WindowsRecycler struct{}

// Name implements Recycler.
func (WindowsRecycler) Name() string { return "windows-recycle-bin" }

// Recycle implements Recycler.
func (WindowsRecycler) Recycle(path string, dryRun bool) (Result, error) {
	if err := requireExists(path); err != nil {
		return Result{Path: path}, err
	}
	if dryRun {
		return Result{Path: path, Message: "would move to recycle bin", DryRun: true}, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Path: path}, failed(path, err)
	}

	// pFrom is a double-NUL-terminated list.
	from, err := windows.UTF16FromString(abs)
	if err != nil {
		return Result{Path: path}, failed(path, err)
	}
	from = append(from, 0)

	op := shFileOpStruct{
		wFunc:  foDelete,
		pFrom:  &from[0],
		fFlags: fofAllowUndo | fofNoConfirmation | fofNoErrorUI | fofSilent,
	}

	if err := procSHFileOperationW.Find(); err != nil {
		return Result{Path: path}, failed(path, err)
	}
	ret, _, _ := procSHFileOperationW.Call(uintptr(unsafe.Pointer(&op)))
	if ret != 0 {
		return Result{Path: path}, failed(path, fmt.Errorf("SHFileOperationW returned 0x%x", ret))
	}
	if op.fAnyOperationsAborted != 0 {
		return Result{Path: path}, failed(path, fmt.Errorf("operation aborted"))
	}

	return Result{Path: path, Recycled: true, Message: "moved to recycle bin"}, nil
}

// Default returns the recycler for this platform.
func Default() Recycler {
	return WindowsRecycler{}
}
