package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/diary/internal/diary"
)

// Dump formats.
const (
	DumpFormatJSON = "json"
	DumpFormatYAML = "yaml"
)

// dumpFile is the on-disk shape of a dump.
type dumpFile struct {
	GeneratedAt time.Time     `json:"generated_at" yaml:"generated_at"`
	Count       int           `json:"count" yaml:"count"`
	Entries     []diary.Entry `json:"entries" yaml:"entries"`
}

// writeDump writes entries to a new file under opts.DumpDir and returns its path.
func writeDump(opts Options, entries []diary.Entry) (string, error) {
	now := opts.Now().UTC()

	if err := os.MkdirAll(opts.DumpDir, 0o755); err != nil {
		return "", fmt.Errorf("dump entries: %w", err)
	}

	path := filepath.Join(opts.DumpDir, dumpFileName(now, opts.DumpFormat))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("dump entries: %w", err)
	}

	d := dumpFile{GeneratedAt: now, Count: len(entries), Entries: entries}
	if err := encodeDump(f, opts.DumpFormat, d); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("dump entries: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("dump entries: %w", err)
	}
	return path, nil
}

// dumpFileName is entries-<utc timestamp>-<random suffix>.<format>. The
// suffix keeps two dumps in the same second from colliding.
func dumpFileName(now time.Time, format string) string {
	return fmt.Sprintf("entries-%s-%s.%s", now.Format("20060102T150405Z"), gonanoid.Must(8), format)
}

func encodeDump(w io.Writer, format string, d dumpFile) error {
	switch format {
	case DumpFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case DumpFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown dump format %q", format)
	}
}
