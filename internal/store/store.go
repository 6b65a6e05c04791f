// Package store is a flat, content-addressed output directory. An output
// for input bytes B is the file <sha256(B)>.<ext>; its presence is the only
// record that B has been processed.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DigestLen is the length of a hex digest.
const DigestLen = 2 * sha256.Size

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ValidDigest reports whether s looks like a Digest result.
func ValidDigest(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// Store writes outputs for one extension into one directory.
type Store struct {
	dir string
	ext string
}

// Open creates dir if needed and checks that it is writable.
func Open(dir, ext string) (*Store, error) {
	if ext == "" {
		return nil, errors.New("store: empty extension")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".snapcrop-probe-*")
	if err != nil {
		return nil, fmt.Errorf("store: %s not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())

	return &Store{dir: dir, ext: ext}, nil
}

// Dir is the output directory.
func (s *Store) Dir() string { return s.dir }

// Ext is the output extension without the dot.
func (s *Store) Ext() string { return s.ext }

// Name is the output file name for digest.
func (s *Store) Name(digest string) string { return digest + "." + s.ext }

// Path is the full output path for digest.
func (s *Store) Path(digest string) string { return filepath.Join(s.dir, s.Name(digest)) }

// Has reports whether an output for digest already exists. An empty file
// is what an interrupted write can leave behind, so it does not count.
func (s *Store) Has(digest string) (bool, error) {
	info, err := os.Stat(s.Path(digest))
	if err == nil {
		return info.Mode().IsRegular() && info.Size() > 0, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("store: stat %s: %w", s.Name(digest), err)
}

// Put writes the output for digest. write receives a temporary file in the
// same directory which is synced and renamed into place only after write
// succeeds, so readers never observe a partial output.
func (s *Store) Put(digest string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(s.dir, ".snapcrop-"+digest[:min(len(digest), 16)]+"-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("store: chmod: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(digest)); err != nil {
		return fmt.Errorf("store: rename %s: %w", s.Name(digest), err)
	}
	committed = true
	return syncDir(s.dir)
}

// syncDir makes a rename in dir durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("store: open dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("store: sync dir: %w", err)
	}
	return nil
}

// Entry describes one stored output.
type Entry struct {
	Digest string
	Ext    string
	Size   int64
}

// List returns every output in dir whose name is <digest>.<ext> for any
// extension. Temporary and foreign files are ignored.
func List(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", dir, err)
	}
	var out []Entry
	for _, de := range des {
		if !de.Type().IsRegular() {
			continue
		}
		name := de.Name()
		ext := filepath.Ext(name)
		digest := name[:len(name)-len(ext)]
		if ext == "" || !ValidDigest(digest) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Digest: digest, Ext: ext[1:], Size: info.Size()})
	}
	return out, nil
}

// Find returns the path of the first output for digest in dir, with any
// extension.
func Find(dir, digest string) (string, bool) {
	if !ValidDigest(digest) {
		return "", false
	}
	matches, _ := filepath.Glob(filepath.Join(dir, digest+".*"))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.Mode().IsRegular() {
			return m, true
		}
	}
	return "", false
}
