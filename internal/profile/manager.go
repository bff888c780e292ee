// Package profile snapshots and restores the browser's user-data directory
// so portal cookies survive a browser being recreated.
package profile

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Chrome's per-process lock files must not travel between launches.
var skipped = map[string]bool{
	"SingletonLock":      true,
	"SingletonSocket":    true,
	"SingletonCookie":    true,
	"DevToolsActivePort": true,
}

// Profile describes one stored snapshot.
type Profile struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Manager handles profile persistence
type Manager struct {
	storePath string
	mu        sync.Mutex
}

// NewManager creates a profile manager storing archives under storePath.
func NewManager(storePath string) (*Manager, error) {
	if err := os.MkdirAll(storePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	return &Manager{storePath: storePath}, nil
}

func (m *Manager) archivePath(name string) string {
	return filepath.Join(m.storePath, name+".tar.gz")
}

// Get returns the stored snapshot for name.
func (m *Manager) Get(name string) (*Profile, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("invalid profile name %q", name)
	}
	path := m.archivePath(name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found: %w", name, err)
	}
	return &Profile{Name: name, Path: path, Size: info.Size(), UpdatedAt: info.ModTime()}, nil
}

// List returns every stored snapshot.
func (m *Manager) List() ([]Profile, error) {
	entries, err := os.ReadDir(m.storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	var out []Profile
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".tar.gz")
		if !ok || e.IsDir() {
			continue
		}
		if p, err := m.Get(name); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Delete removes a stored snapshot. Missing snapshots are not an error.
func (m *Manager) Delete(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid profile name %q", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.Remove(m.archivePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// Snapshot compresses userDataDir into the named archive, replacing the
// previous one atomically.
func (m *Manager) Snapshot(name, userDataDir string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid profile name %q", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tmp := filepath.Join(m.storePath, fmt.Sprintf(".%s-%s.tmp", name, uuid.New().String()))
	if err := compressDirectory(userDataDir, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to compress profile: %w", err)
	}
	if err := os.Rename(tmp, m.archivePath(name)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}

// Restore extracts the named archive into userDataDir. It reports false when
// no snapshot exists yet.
func (m *Manager) Restore(name, userDataDir string) (bool, error) {
	if !validName.MatchString(name) {
		return false, fmt.Errorf("invalid profile name %q", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.archivePath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.MkdirAll(userDataDir, 0755); err != nil {
		return false, fmt.Errorf("failed to create user data directory: %w", err)
	}
	if err := extractDirectory(path, userDataDir); err != nil {
		return false, fmt.Errorf("failed to extract profile: %w", err)
	}
	return true, nil
}

// compressDirectory creates a tar.gz archive of a directory
func compressDirectory(source, target string) error {
	file, err := os.Create(target)
	if err != nil {
		return err
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	return filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if skipped[info.Name()] || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		header, err := tar.FileInfoHeader(info, info.Name())
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}
		header.Name = filepath.ToSlash(relPath)

		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}

		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tarWriter, f)
		return err
	})
}

// extractDirectory extracts a tar.gz archive to a directory
func extractDirectory(source, target string) error {
	file, err := os.Open(source)
	if err != nil {
		return err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	root := filepath.Clean(target) + string(os.PathSeparator)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		targetPath := filepath.Join(target, filepath.FromSlash(header.Name))
		if !strings.HasPrefix(targetPath, root) {
			return fmt.Errorf("archive entry %q escapes target", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
				return err
			}
			outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return err
			}
			outFile.Close()
		}
	}

	return nil
}
