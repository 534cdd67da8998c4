package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Veraticus/the-ledger-must-balance/internal/model"
)

// Destination computes where a document is filed below root:
// <root>/<Account/Path>/<YYYY-MM-DD>.<FileName>. When the importer cannot
// date the file, its modification time is used.
func Destination(imp Importer, f *File, root string) (string, error) {
	account := imp.FileAccount(f)
	if err := model.ValidateAccount(account); err != nil {
		return "", err
	}

	date, err := imp.FileDate(f)
	if err != nil {
		return "", fmt.Errorf("failed to date %s: %w", f.Path(), err)
	}
	if date.IsZero() {
		info, statErr := os.Stat(f.Path())
		if statErr != nil {
			return "", fmt.Errorf("failed to stat %s: %w", f.Path(), statErr)
		}
		date = info.ModTime()
	}

	parts := append([]string{root}, model.AccountComponents(account)...)
	dir := filepath.Join(parts...)
	return filepath.Join(dir, date.Format("2006-01-02")+"."+imp.FileName(f)), nil
}

// Move relocates src to dst, creating directories as needed. It refuses to
// overwrite an existing file.
func Move(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("destination %s already exists", dst)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Rename fails across filesystems; fall back to copy and remove.
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
