package block

import (
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ManifestName is the metadata file written into every session directory.
const ManifestName = "manifest.json"

// writeManifest records the session's identity so orphaned directories can
// be recognized and swept after a crash.
func (s *Store) writeManifest() error {
	body, _ := sjson.Set("", "session", filepath.Base(s.dir))
	body, _ = sjson.Set(body, "created", time.Now().UTC().Format(time.RFC3339))
	body, _ = sjson.Set(body, "pid", os.Getpid())

	path := filepath.Join(s.dir, ManifestName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return &FileError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// noteSource updates the manifest with the opened document and block count.
// Manifest updates are best-effort; a failure never aborts the open.
func (s *Store) noteSource(source string, blocks int) {
	path := filepath.Join(s.dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	body, _ := sjson.Set(string(data), "source", source)
	body, _ = sjson.Set(body, "blocks", blocks)
	os.WriteFile(path, []byte(body), 0o644)
}

// SweepStale removes session directories under baseDir older than maxAge.
// Age comes from the manifest's created timestamp, falling back to the
// directory's modification time when the manifest is missing or unreadable.
// Directories not carrying the session prefix are left alone. Returns the
// number of directories removed.
func SweepStale(baseDir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return 0, &FileError{Op: "read", Path: baseDir, Err: err}
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !isSessionDir(entry.Name()) {
			continue
		}
		dir := filepath.Join(baseDir, entry.Name())
		if sessionCreatedAt(dir, entry).After(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, &FileError{Op: "remove", Path: dir, Err: err}
		}
		removed++
	}
	return removed, nil
}

func isSessionDir(name string) bool {
	return len(name) > len(DirPrefix) && name[:len(DirPrefix)] == DirPrefix
}

func sessionCreatedAt(dir string, entry os.DirEntry) time.Time {
	if data, err := os.ReadFile(filepath.Join(dir, ManifestName)); err == nil {
		created := gjson.GetBytes(data, "created").String()
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			return t
		}
	}
	if info, err := entry.Info(); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}
