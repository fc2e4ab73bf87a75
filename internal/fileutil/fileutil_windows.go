//go:build windows

package fileutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"
	"unsafe"
)

var (
	shell32          = syscall.NewLazyDLL("shell32.dll")
	shFileOperationW = shell32.NewProc("SHFileOperationW")
)

const (
	foDelete          = 3
	fofAllowUndo      = 0x40
	fofNoConfirmation = 0x10
	fofSilent         = 0x4
	fofNoErrorUI      = 0x400
)

// File attributes set on OneDrive/iCloud style placeholders.
const (
	fileAttributeOffline            = 0x1000
	fileAttributeRecallOnOpen       = 0x40000
	fileAttributeRecallOnDataAccess = 0x400000
)

// https://learn.microsoft.com/en-us/windows/win32/api/shellapi/ns-shellapi-shfileopstructw
type shFileOpStructW struct {
	Hwnd                 uintptr
	Func                 uint32
	From                 *uint16
	To                   *uint16
	Flags                uint16
	AnyOperationsAborted int32
	NameMappings         uintptr
	ProgressTitle        *uint16
}

func moveToWindowsTrash(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	from, err := syscall.UTF16FromString(absPath)
	if err != nil {
		return err
	}
	// pFrom is a list of paths ending in an empty string.
	from = append(from, 0)

	op := shFileOpStructW{
		Func:  foDelete,
		From:  &from[0],
		Flags: fofAllowUndo | fofNoConfirmation | fofSilent | fofNoErrorUI,
	}
	if ret, _, _ := shFileOperationW.Call(uintptr(unsafe.Pointer(&op))); ret != 0 {
		return fmt.Errorf("SHFileOperationW failed with code %d", ret)
	}
	return nil
}

// IsCloudOnly reports whether info describes a placeholder whose contents
// are not stored locally and would be downloaded on read.
func IsCloudOnly(_ string, info fs.FileInfo) bool {
	if info == nil {
		return false
	}
	data, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return false
	}
	const remote = fileAttributeOffline | fileAttributeRecallOnOpen | fileAttributeRecallOnDataAccess
	return data.FileAttributes&remote != 0
}
