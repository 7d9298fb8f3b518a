package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File names inside the staging directory.
const (
	ExportXML  = "product_export.xml"
	ExportZip  = "product_export.zip"
	ExportTS   = "product_export.ts"
	ExportLock = "product_export.lock"

	ImportXML  = "product_import.xml"
	ImportZip  = "product_import.zip"
	ImportTS   = "product_import.ts"
	ImportName = "product_import.name"
)

var (
	ErrLocked   = errors.New("staging file is locked")
	ErrNotFound = errors.New("staging file not found")
	ErrSurvived = errors.New("staging file could not be removed")
)

// Store keeps export and import artifacts in one directory. Writers never
// expose half-written files: content goes to a temporary file that is renamed
// into place.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("staging directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

// Lock creates the lock file exclusively. The returned function removes it.
func (s *Store) Lock(name string) (func() error, error) {
	f, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return func() error {
		err := os.Remove(s.Path(name))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}, nil
}

func (s *Store) Open(name string) (*os.File, error) {
	f, err := os.Open(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Create returns a writer for name. Nothing is visible under name until
// Commit succeeds.
func (s *Store) Create(name string) (*PendingFile, error) {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return nil, err
	}
	return &PendingFile{File: tmp, target: s.Path(name)}, nil
}

func (s *Store) WriteFile(name string, r io.Reader) (int64, error) {
	pending, err := s.Create(name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(pending, r)
	if err != nil {
		pending.Abort()
		return n, err
	}
	return n, pending.Commit()
}

func (s *Store) WriteText(name, text string) error {
	_, err := s.WriteFile(name, strings.NewReader(text))
	return err
}

func (s *Store) ReadText(name string) (string, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) WriteTimestamp(name string, ts int64) error {
	return s.WriteText(name, strconv.FormatInt(ts, 10))
}

func (s *Store) ReadTimestamp(name string) (int64, error) {
	raw, err := s.ReadText(name)
	if err != nil {
		return 0, err
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp file %s: %w", name, err)
	}
	return ts, nil
}

// Remove deletes the named files. Missing files are fine; a file that is still
// present afterwards is reported with ErrSurvived.
func (s *Store) Remove(names ...string) error {
	var errs []error
	for _, name := range names {
		err := os.Remove(s.Path(name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
		if s.Exists(name) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrSurvived, name))
		}
	}
	return errors.Join(errs...)
}

// PendingFile is a temporary file renamed into place on Commit.
type PendingFile struct {
	*os.File
	target string
}

func (p *PendingFile) Commit() error {
	if err := p.File.Close(); err != nil {
		os.Remove(p.File.Name())
		return err
	}
	if err := os.Rename(p.File.Name(), p.target); err != nil {
		os.Remove(p.File.Name())
		return err
	}
	return nil
}

func (p *PendingFile) Abort() {
	p.File.Close()
	os.Remove(p.File.Name())
}
