//go:build !windows

package fileutil

import (
	"errors"
	"io/fs"
)

func moveToWindowsTrash(string) error {
	return errors.New("windows recycle bin is not available on this platform")
}

// IsCloudOnly reports whether info describes a placeholder whose contents
// live with a cloud provider. Only Windows exposes this, so it is always
// false here.
func IsCloudOnly(string, fs.FileInfo) bool {
	return false
}
