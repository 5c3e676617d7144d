package source

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileScheme prefixes local URLs.
const FileScheme = "file://"

// LocalSource reads documents from the local filesystem.
type LocalSource struct{}

var _ StorageSource = (*LocalSource)(nil)

func NewLocalSource() *LocalSource {
	return &LocalSource{}
}

func (s *LocalSource) IsMatch(url string) bool {
	return strings.HasPrefix(url, FileScheme)
}

func (s *LocalSource) IsCloudURL(string) bool {
	return false
}

// LocalPath converts a file:// URL to a filesystem path.
// Anything else is treated as a path already.
func LocalPath(url string) string {
	return filepath.Clean(strings.TrimPrefix(url, FileScheme))
}

// FileURL converts a filesystem path to a file:// URL.
func FileURL(path string) string {
	return FileScheme + path
}

// UploadScheme prefixes the identity of uploaded documents.
// No source resolves it; it only names content.
const UploadScheme = "upload://"

// UploadURL names an uploaded document by the digest of its bytes.
func UploadURL(digest string) string {
	return UploadScheme + digest
}

// List returns file:// URLs of the regular files under url, in lexical order.
func (s *LocalSource) List(ctx context.Context, url string, recursive bool) ([]string, error) {
	root := LocalPath(url)
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &fs.PathError{Op: "list", Path: root, Err: ErrPathNotFound}
		}
		return nil, err
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() {
			return []string{FileURL(root)}, nil
		}
		return nil, nil
	}

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		var urls []string
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				urls = append(urls, FileURL(filepath.Join(root, entry.Name())))
			}
		}
		return urls, nil
	}

	var urls []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			urls = append(urls, FileURL(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// Fetch links the document at url to dst, copying when a link is not possible.
// When url already names dst it returns the path untouched.
func (s *LocalSource) Fetch(ctx context.Context, url, dst string) (string, error) {
	src := LocalPath(url)
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &fs.PathError{Op: "fetch", Path: src, Err: ErrSourceNotFound}
		}
		return "", err
	}
	dst = filepath.Clean(dst)
	if src == dst {
		return src, nil
	}
	if sameFile(src, dst) {
		return dst, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	if err := os.Link(src, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

func sameFile(a, b string) bool {
	aInfo, err := os.Stat(a)
	if err != nil {
		return false
	}
	bInfo, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(aInfo, bInfo)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
