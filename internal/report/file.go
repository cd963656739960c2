package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// WriteFile renders r and atomically replaces path with it.
func WriteFile(fs afero.Fs, path string, r Report) error {
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return err
	}
	return writeAtomic(fs, path, buf.Bytes())
}

// ParseFile reads and parses the report stored at path.
func ParseFile(fs afero.Fs, path string) (*Parsed, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Snapshot is the machine-readable twin of the markdown report.
type Snapshot struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Working     int           `json:"working"`
	Dead        int           `json:"dead"`
	Total       int           `json:"total"`
	DeadStreams []SnapshotRow `json:"dead_streams"`
	Links       []Link        `json:"links"`
}

type SnapshotRow struct {
	Name   string `json:"name"`
	Group  string `json:"group,omitempty"`
	Source string `json:"source,omitempty"`
	Code   int    `json:"code"`
	Error  string `json:"error"`
	URL    string `json:"url"`
}

func NewSnapshot(r Report) Snapshot {
	s := Snapshot{
		GeneratedAt: r.GeneratedAt,
		Working:     r.Working,
		Dead:        len(r.Dead),
		Total:       r.Total(),
		DeadStreams: make([]SnapshotRow, 0, len(r.Dead)),
		Links:       r.Links,
	}
	for _, res := range r.Dead {
		s.DeadStreams = append(s.DeadStreams, SnapshotRow{
			Name:   res.Channel.Name,
			Group:  res.Channel.Group,
			Source: res.Channel.Source,
			Code:   res.Code,
			Error:  res.ErrorLabel(),
			URL:    res.Channel.URL,
		})
	}
	return s
}

// WriteJSON stores the snapshot of r next to the markdown report.
func WriteJSON(fs afero.Fs, path string, r Report) error {
	b, err := json.MarshalIndent(NewSnapshot(r), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return writeAtomic(fs, path, append(b, '\n'))
}

func writeAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	cleanup := func() { _ = fs.Remove(name) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := fs.Chmod(name, 0o644); err != nil && !os.IsNotExist(err) {
		cleanup()
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := fs.Rename(name, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
