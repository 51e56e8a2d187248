package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/diary/internal/diary"
)

// Key layout:
//
//	e/<id:8 bytes big endian>  -> JSON entry
//	m/next_id                  -> last allocated id (8 bytes big endian)
var (
	entryPrefix = []byte("e/")
	nextIDKey   = []byte("m/next_id")
)

// Pebble stores entries in a Pebble database directory.
type Pebble struct {
	db        *pebble.DB
	opts      Options
	writeSync bool
}

var _ Handle = (*Pebble)(nil)

// OpenPebble creates or opens a Pebble database in dir.
func OpenPebble(dir string, opts Options) (*Pebble, error) {
	if dir == "" {
		return nil, errors.New("pebble: data directory is required")
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}
	return &Pebble{db: db, opts: opts.withDefaults(), writeSync: opts.Sync}, nil
}

// Close closes the Pebble database.
func (p *Pebble) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Pebble) writeOpts() *pebble.WriteOptions {
	if p.writeSync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func entryKey(id int64) []byte {
	k := make([]byte, len(entryPrefix)+8)
	copy(k, entryPrefix)
	binary.BigEndian.PutUint64(k[len(entryPrefix):], uint64(id))
	return k
}

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// get copies the value for key.
func (p *Pebble) get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(val), nil
}

func (p *Pebble) readEntry(id int64) (diary.Entry, error) {
	raw, err := p.get(entryKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return diary.Entry{}, diary.NotFound(id)
	}
	if err != nil {
		return diary.Entry{}, fmt.Errorf("read entry %d: %w", id, err)
	}
	var e diary.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return diary.Entry{}, fmt.Errorf("decode entry %d: %w", id, err)
	}
	return e, nil
}

func (p *Pebble) writeEntry(b *pebble.Batch, e diary.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.Set(entryKey(e.ID), raw, nil)
}

func (p *Pebble) nextID() (int64, error) {
	raw, err := p.get(nextIDKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("corrupt id counter: %d bytes", len(raw))
	}
	return int64(binary.BigEndian.Uint64(raw)) + 1, nil
}

// Create inserts a new entry with the next id.
func (p *Pebble) Create(ctx context.Context, content string, pinned bool) (diary.Entry, error) {
	id, err := p.nextID()
	if err != nil {
		return diary.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	e := diary.Entry{
		ID:        id,
		Content:   diary.NormalizeContent(content),
		CreatedAt: p.opts.Now().UTC(),
		Pinned:    pinned,
	}

	b := p.db.NewBatch()
	defer b.Close()
	if err := p.writeEntry(b, e); err != nil {
		return diary.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(id))
	if err := b.Set(nextIDKey, counter[:], nil); err != nil {
		return diary.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	if err := b.Commit(p.writeOpts()); err != nil {
		return diary.Entry{}, fmt.Errorf("create entry: %w", err)
	}
	return e, nil
}

// ReadOne returns the entry with the given id or diary.ErrNotFound.
func (p *Pebble) ReadOne(ctx context.Context, id int64) (diary.Entry, error) {
	return p.readEntry(id)
}

// scan returns every entry in ascending id order.
func (p *Pebble) scan() ([]diary.Entry, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: entryPrefix,
		UpperBound: prefixUpperBound(entryPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	defer it.Close()

	entries := []diary.Entry{}
	for it.First(); it.Valid(); it.Next() {
		var e diary.Entry
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			return nil, fmt.Errorf("decode entry at %x: %w", it.Key(), err)
		}
		entries = append(entries, e)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	return entries, nil
}

// ReadPage filters and sorts in memory. Diaries are small enough that a full
// scan is cheaper than maintaining secondary indexes.
func (p *Pebble) ReadPage(ctx context.Context, q diary.PageQuery) (diary.Page, error) {
	rq, err := q.Resolve()
	if err != nil {
		return diary.Page{}, err
	}

	all, err := p.scan()
	if err != nil {
		return diary.Page{}, err
	}

	matched := all[:0]
	for _, e := range all {
		if rq.Pinned != nil && e.Pinned != *rq.Pinned {
			continue
		}
		if !diary.ContainsFold(e.Content, rq.Substring) {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		if rq.Sort == diary.SortDesc {
			return createdBefore(matched[j], matched[i])
		}
		return createdBefore(matched[i], matched[j])
	})

	total := int64(len(matched))
	start := min(rq.Offset(), total)
	end := min(start+rq.PerPage, total)
	page := append([]diary.Entry(nil), matched[start:end]...)
	return diary.NewPage(page, total, rq), nil
}

func createdBefore(a, b diary.Entry) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// Update applies a partial update. An empty patch returns the entry as is.
func (p *Pebble) Update(ctx context.Context, id int64, patch diary.EntryPatch) (diary.Entry, error) {
	current, err := p.readEntry(id)
	if err != nil {
		return diary.Entry{}, err
	}
	if patch.Empty() {
		return current, nil
	}

	updated := patch.Apply(current, p.opts.Now().UTC())
	b := p.db.NewBatch()
	defer b.Close()
	if err := p.writeEntry(b, updated); err != nil {
		return diary.Entry{}, fmt.Errorf("update entry %d: %w", id, err)
	}
	if err := b.Commit(p.writeOpts()); err != nil {
		return diary.Entry{}, fmt.Errorf("update entry %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes an entry or returns diary.ErrNotFound.
func (p *Pebble) Delete(ctx context.Context, id int64) error {
	if _, err := p.readEntry(id); err != nil {
		return err
	}
	if err := p.db.Delete(entryKey(id), p.writeOpts()); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	return nil
}

// DumpAll writes every entry to a new file in the dump directory.
func (p *Pebble) DumpAll(ctx context.Context) error {
	entries, err := p.scan()
	if err != nil {
		return fmt.Errorf("dump entries: %w", err)
	}
	path, err := writeDump(p.opts, entries)
	if err != nil {
		return err
	}
	p.opts.Logger.Info("entries dumped", "path", path, "count", len(entries))
	return nil
}
