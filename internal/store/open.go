package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/diary/internal/diary"
)

// Handle is the CRUD surface of a backend. Implementations are not safe for
// concurrent use; Close must be called at most once.
type Handle interface {
	Create(ctx context.Context, content string, pinned bool) (diary.Entry, error)
	ReadOne(ctx context.Context, id int64) (diary.Entry, error)
	ReadPage(ctx context.Context, q diary.PageQuery) (diary.Page, error)
	Update(ctx context.Context, id int64, patch diary.EntryPatch) (diary.Entry, error)
	Delete(ctx context.Context, id int64) error
	DumpAll(ctx context.Context) error
	Close() error
}

// Options configures a backend.
type Options struct {
	// Now stamps created_at/updated_at. Defaults to time.Now.
	Now func() time.Time

	// DumpDir receives DumpAll output. Defaults to "dumps".
	DumpDir string

	// DumpFormat is "json" (default) or "yaml".
	DumpFormat string

	// Sync forces an fsync on every Pebble write batch.
	Sync bool

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.DumpDir == "" {
		o.DumpDir = "dumps"
	}
	if o.DumpFormat == "" {
		o.DumpFormat = DumpFormatJSON
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Supported URL schemes.
const (
	SchemeSQLite = "sqlite"
	SchemePebble = "pebble"
)

// ParseURL splits a database URL of the form scheme://location.
func ParseURL(rawURL string) (scheme, location string, err error) {
	scheme, location, ok := strings.Cut(rawURL, "://")
	if !ok || location == "" {
		return "", "", fmt.Errorf("invalid database url %q: want scheme://location", rawURL)
	}
	switch scheme {
	case SchemeSQLite, SchemePebble:
		return scheme, location, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q (want %s or %s)", scheme, SchemeSQLite, SchemePebble)
	}
}

// Open opens the backend selected by the URL scheme.
func Open(ctx context.Context, rawURL string, opts Options) (Handle, error) {
	scheme, location, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case SchemePebble:
		return OpenPebble(location, opts)
	default:
		return OpenSQLite(ctx, location, opts)
	}
}
