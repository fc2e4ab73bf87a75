// Package fileutil moves files out of the way for the clean command and
// tells local files from cloud placeholders.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
)

// MoveFile moves src into destDir and returns the new path. An existing file
// with the same name gets a numeric suffix (report_1.pdf).
func MoveFile(src, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	destName := uniqueName(filepath.Base(src), func(name string) bool {
		_, err := os.Lstat(filepath.Join(destDir, name))
		return errors.Is(err, os.ErrNotExist)
	})
	dest := filepath.Join(destDir, destName)
	return dest, rename(src, dest)
}

// uniqueName appends _N before the extension until free reports true.
func uniqueName(filename string, free func(string) bool) string {
	if free(filename) {
		return filename
	}
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if free(candidate) {
			return candidate
		}
	}
}

// rename moves src to dest, copying across filesystems when needed.
func rename(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

// MoveToTrash moves a file to the platform trash and returns where it went.
// On Windows the Recycle Bin owns the file and the returned path is empty.
func MoveToTrash(src string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		return "", moveToWindowsTrash(src)
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return MoveFile(src, filepath.Join(home, ".Trash"))
	default:
		return moveToFreedesktopTrash(src, filepath.Join(xdg.DataHome, "Trash"))
	}
}

// moveToFreedesktopTrash moves src into trashDir/files and writes the
// matching trashDir/info/<name>.trashinfo entry.
func moveToFreedesktopTrash(src, trashDir string) (string, error) {
	filesDir := filepath.Join(trashDir, "files")
	infoDir := filepath.Join(trashDir, "info")
	for _, dir := range []string{filesDir, infoDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", fmt.Errorf("failed to create trash directory: %w", err)
		}
	}

	absPath, err := filepath.Abs(src)
	if err != nil {
		return "", err
	}

	name := uniqueName(filepath.Base(src), func(name string) bool {
		_, errFile := os.Lstat(filepath.Join(filesDir, name))
		_, errInfo := os.Lstat(filepath.Join(infoDir, name+".trashinfo"))
		return errors.Is(errFile, os.ErrNotExist) && errors.Is(errInfo, os.ErrNotExist)
	})
	dest := filepath.Join(filesDir, name)
	infoPath := filepath.Join(infoDir, name+".trashinfo")

	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		absPath, time.Now().Format("2006-01-02T15:04:05"))
	if err := os.WriteFile(infoPath, []byte(info), 0600); err != nil {
		return "", err
	}

	if err := rename(src, dest); err != nil {
		os.Remove(infoPath)
		return "", err
	}
	return dest, nil
}
