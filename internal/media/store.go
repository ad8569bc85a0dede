// Package media stores uploaded attachments and avatars on local disk.
package media

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/teris-io/shortid"
)

const URLPrefix = "/media/"

// MaxUploadSize bounds a single uploaded file.
const MaxUploadSize = 10 << 20

var (
	ErrTooLarge        = errors.New("upload exceeds maximum size")
	ErrUnsupportedType = errors.New("unsupported file type")
)

var allowedExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".pdf": true, ".txt": true, ".mp3": true, ".mp4": true,
}

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save copies r into the store under a generated name and returns the
// reference used in messages and user avatars.
func (s *Store) Save(filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w %q", ErrUnsupportedType, ext)
	}

	id, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate file name: %w", err)
	}
	name := id + ext

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if n > MaxUploadSize {
		os.Remove(f.Name())
		return "", ErrTooLarge
	}

	return path.Join(URLPrefix, name), nil
}

// Remove deletes the file behind a reference returned by Save. Unknown
// references are ignored.
func (s *Store) Remove(ref string) error {
	name := path.Base(ref)
	if !strings.HasPrefix(ref, URLPrefix) || name == "." || name == "/" {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Handler serves stored files under URLPrefix. Directories are not listed.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(filesOnly{http.Dir(s.dir)}))
}

type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
