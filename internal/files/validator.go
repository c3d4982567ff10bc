package files

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
)

var (
	ErrEmptyFile = errors.New("file is empty")
	ErrTooLarge  = errors.New("file exceeds size limit")
)

// FileInfo holds information about a file to be sent
type FileInfo struct {
	// Path is the absolute path to the file
	Path string

	// Name is the filename (without directory)
	Name string

	Size int64

	// Type is the MIME type, application/octet-stream when unknown
	Type string

	// Archived is set when Path is a temporary zip of a directory and
	// should be removed after sending.
	Archived bool
}

// Prepare validates path for sending. Directories are zipped into a
// temporary archive first. limit <= 0 disables the size check.
func Prepare(path string, limit int64) (FileInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: failed to get absolute path: %w", path, err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return FileInfo{}, fmt.Errorf("%s: file does not exist", path)
		}
		return FileInfo{}, fmt.Errorf("%s: failed to stat file: %w", path, err)
	}

	if stat.IsDir() {
		return prepareDirectory(absPath, limit)
	}
	return validate(absPath, filepath.Base(absPath), stat.Size(), limit)
}

func prepareDirectory(dir string, limit int64) (FileInfo, error) {
	tmp, err := os.CreateTemp("", "warpmesh-*.zip")
	if err != nil {
		return FileInfo{}, fmt.Errorf("creating archive: %w", err)
	}
	tmp.Close()

	if err := ZipDirectory(dir, tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return FileInfo{}, fmt.Errorf("%s: zipping directory: %w", dir, err)
	}

	stat, err := os.Stat(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return FileInfo{}, err
	}

	info, err := validate(tmp.Name(), filepath.Base(dir)+".zip", stat.Size(), limit)
	if err != nil {
		os.Remove(tmp.Name())
		return FileInfo{}, err
	}
	info.Archived = true
	return info, nil
}

func validate(path, name string, size, limit int64) (FileInfo, error) {
	if size == 0 {
		return FileInfo{}, fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	if limit > 0 && size > limit {
		return FileInfo{}, fmt.Errorf("%s: %w (%d > %d bytes)", name, ErrTooLarge, size, limit)
	}

	file, err := os.Open(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%s: cannot open file (check permissions): %w", name, err)
	}
	file.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return FileInfo{
		Path: path,
		Name: name,
		Size: size,
		Type: mimeType,
	}, nil
}

// Cleanup removes a temporary archive made by Prepare.
func (f FileInfo) Cleanup() {
	if f.Archived {
		os.Remove(f.Path)
	}
}
