// Package localfile opens local files for upload.
package localfile

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
)

// DefaultContentType is used when a file's type cannot be detected.
const DefaultContentType = "application/octet-stream"

// sniffLen is how many bytes are read to detect the content type.
const sniffLen = 3072

// File is an open local file. It implements chunkupload.File.
type File struct {
	file        afero.File
	name        string
	size        int64
	contentType string
}

// Open opens a regular file.
//
// The file's upload name is its path with forward slashes.
func Open(fs afero.Fs, path string) (*File, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("localfile: %v", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("localfile: %s is not a regular file", path)
	}

	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("localfile: %v", err)
	}

	contentType, err := detectContentType(file, path)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("localfile: reading %s: %v", path, err)
	}

	return &File{
		file:        file,
		name:        filepath.ToSlash(filepath.Clean(path)),
		size:        info.Size(),
		contentType: contentType,
	}, nil
}

// OpenAll opens the files at the given paths.
//
// Directories are replaced by the regular files below them in lexical
// order. On error, files opened so far are closed.
func OpenAll(fs afero.Fs, paths []string) ([]*File, error) {
	var files []*File

	for _, path := range paths {
		expanded, err := expand(fs, path)
		if err != nil {
			CloseAll(files)
			return nil, err
		}

		for _, p := range expanded {
			file, err := Open(fs, p)
			if err != nil {
				CloseAll(files)
				return nil, err
			}
			files = append(files, file)
		}
	}

	return files, nil
}

// CloseAll closes the files, ignoring errors.
func CloseAll(files []*File) {
	for _, file := range files {
		_ = file.Close()
	}
}

// expand returns the regular files at or below path.
func expand(fs afero.Fs, path string) ([]string, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("localfile: %v", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = afero.Walk(fs, path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("localfile: walking %s: %v", path, err)
	}

	slices.Sort(paths)
	return paths, nil
}

// detectContentType sniffs the file's content, falling back to its
// extension for content that isn't recognized.
func detectContentType(file afero.File, path string) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := file.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}

	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); !mt.Is(DefaultContentType) {
			return mt.String(), nil
		}
	}

	return contentTypeFromExtension(path), nil
}

func contentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}

	return DefaultContentType
}

func (f *File) Name() string        { return f.name }
func (f *File) Size() int64         { return f.size }
func (f *File) ContentType() string { return f.contentType }

// ReadAt implements io.ReaderAt.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.file.ReadAt(p, off)
}

func (f *File) Close() error {
	return f.file.Close()
}
