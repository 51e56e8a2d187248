package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/diary/internal/diary"
)

// Operation names recorded by RecordingStore.
const (
	OpCreate   = "create"
	OpReadOne  = "read_one"
	OpReadPage = "read_page"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpDumpAll  = "dump_all"
	OpClose    = "close"
)

// Op is one call observed by RecordingStore.
type Op struct {
	Kind    string
	ID      int64
	Content string
}

// RecordingStore is an in-memory entry store that records every call in the
// order it was made. It detects overlapping calls and calls made after
// Close, which is what engine tests assert against.
//
// Thread-safety: safe for concurrent use, so that a misbehaving caller is
// observed rather than crashing the test.
type RecordingStore struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]diary.Entry
	nextID  int64
	ops     []Op
	fail    map[string]error
	panicOn string
	delay   time.Duration
	gate    chan struct{}
	closed  bool

	inflight   atomic.Int32
	overlaps   atomic.Int32
	afterClose atomic.Int32
	closeCalls atomic.Int32

	started chan Op
}

// NewRecordingStore creates an empty store stamped by a default StepClock.
func NewRecordingStore() *RecordingStore {
	return &RecordingStore{
		now:     NewDefaultClock().Now,
		entries: make(map[int64]diary.Entry),
		fail:    make(map[string]error),
		started: make(chan Op, 1024),
	}
}

// FailOn makes every call of kind return err.
func (s *RecordingStore) FailOn(kind string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[kind] = err
}

// PanicOn makes every call of kind panic.
func (s *RecordingStore) PanicOn(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panicOn = kind
}

// SetDelay makes every call sleep for d before doing its work.
func (s *RecordingStore) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Hold blocks every subsequent call until Release is called.
func (s *RecordingStore) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
}

// Release unblocks calls held by Hold.
func (s *RecordingStore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Started delivers each call as it begins, before any Hold or delay.
func (s *RecordingStore) Started() <-chan Op { return s.started }

// Ops returns a copy of the recorded calls.
func (s *RecordingStore) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Op(nil), s.ops...)
}

// Kinds returns the recorded operation names in call order.
func (s *RecordingStore) Kinds() []string {
	ops := s.Ops()
	kinds := make([]string, len(ops))
	for i, op := range ops {
		kinds[i] = op.Kind
	}
	return kinds
}

// CloseCalls is the number of times Close was called.
func (s *RecordingStore) CloseCalls() int { return int(s.closeCalls.Load()) }

// Overlaps is the number of calls that began while another was running.
func (s *RecordingStore) Overlaps() int { return int(s.overlaps.Load()) }

// CallsAfterClose is the number of calls made after Close.
func (s *RecordingStore) CallsAfterClose() int { return int(s.afterClose.Load()) }

// enter records op and applies the configured hold, delay, panic and
// failure. The returned func must be deferred.
func (s *RecordingStore) enter(op Op) (func(), error) {
	if s.inflight.Add(1) > 1 {
		s.overlaps.Add(1)
	}

	select {
	case s.started <- op:
	default:
	}

	s.mu.Lock()
	if s.closed {
		s.afterClose.Add(1)
	}
	s.ops = append(s.ops, op)
	gate, delay, panicOn, err := s.gate, s.delay, s.panicOn, s.fail[op.Kind]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	leave := func() { s.inflight.Add(-1) }
	if panicOn == op.Kind {
		leave()
		panic(fmt.Sprintf("recording store: panic on %s", op.Kind))
	}
	return leave, err
}

// Create inserts an entry.
func (s *RecordingStore) Create(_ context.Context, content string, pinned bool) (diary.Entry, error) {
	leave, err := s.enter(Op{Kind: OpCreate, Content: content})
	defer leave()
	if err != nil {
		return diary.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := diary.Entry{ID: s.nextID, Content: diary.NormalizeContent(content), CreatedAt: s.now(), Pinned: pinned}
	s.entries[e.ID] = e
	return e, nil
}

// ReadOne returns an entry or diary.ErrNotFound.
func (s *RecordingStore) ReadOne(_ context.Context, id int64) (diary.Entry, error) {
	leave, err := s.enter(Op{Kind: OpReadOne, ID: id})
	defer leave()
	if err != nil {
		return diary.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return diary.Entry{}, diary.NotFound(id)
	}
	return e, nil
}

// ReadPage returns entries ordered by id in the requested direction.
func (s *RecordingStore) ReadPage(_ context.Context, q diary.PageQuery) (diary.Page, error) {
	leave, err := s.enter(Op{Kind: OpReadPage})
	defer leave()
	if err != nil {
		return diary.Page{}, err
	}
	rq, err := q.Resolve()
	if err != nil {
		return diary.Page{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []diary.Entry
	for _, e := range s.entries {
		if rq.Pinned != nil && e.Pinned != *rq.Pinned {
			continue
		}
		if !diary.ContainsFold(e.Content, rq.Substring) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		if rq.Sort == diary.SortAsc {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))
	start := min(rq.Offset(), total)
	end := min(start+rq.PerPage, total)
	return diary.NewPage(append([]diary.Entry(nil), matched[start:end]...), total, rq), nil
}

// Update applies a patch.
func (s *RecordingStore) Update(_ context.Context, id int64, patch diary.EntryPatch) (diary.Entry, error) {
	op := Op{Kind: OpUpdate, ID: id}
	if patch.Content != nil {
		op.Content = *patch.Content
	}
	leave, err := s.enter(op)
	defer leave()
	if err != nil {
		return diary.Entry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return diary.Entry{}, diary.NotFound(id)
	}
	e = patch.Apply(e, s.now())
	s.entries[id] = e
	return e, nil
}

// Delete removes an entry.
func (s *RecordingStore) Delete(_ context.Context, id int64) error {
	leave, err := s.enter(Op{Kind: OpDelete, ID: id})
	defer leave()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return diary.NotFound(id)
	}
	delete(s.entries, id)
	return nil
}

// DumpAll records the call and does nothing else.
func (s *RecordingStore) DumpAll(_ context.Context) error {
	leave, err := s.enter(Op{Kind: OpDumpAll})
	defer leave()
	return err
}

// Close marks the store closed. Every call is counted.
func (s *RecordingStore) Close() error {
	s.closeCalls.Add(1)
	leave, err := s.enter(Op{Kind: OpClose})
	defer leave()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
