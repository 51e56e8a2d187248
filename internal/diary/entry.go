package diary

import (
	"fmt"
	"strings"
	"time"
)

// Entry is a single diary record.
type Entry struct {
	ID        int64      `json:"id" yaml:"id"`
	Content   string     `json:"content" yaml:"content"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt *time.Time `json:"updated_at" yaml:"updated_at"`
	Pinned    bool       `json:"pinned" yaml:"pinned"`
}

// Page is one page of entries plus the totals needed to render paging.
type Page struct {
	Entries    []Entry `json:"entries"`
	HasNext    bool    `json:"has_next"`
	Total      int64   `json:"total"`
	Page       int64   `json:"page"`
	PerPage    int64   `json:"per_page"`
	TotalPages int64   `json:"total_pages"`
}

// SortOrder orders entries by creation time.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Paging defaults.
const (
	DefaultPage    int64 = 1
	DefaultPerPage int64 = 10
	MaxPerPage     int64 = 100
)

// ParseSortOrder accepts ASC/DESC in any case. Empty input yields SortDesc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return SortDesc, nil
	case string(SortAsc):
		return SortAsc, nil
	case string(SortDesc):
		return SortDesc, nil
	default:
		return "", fmt.Errorf("%w: sort order %q (want ASC or DESC)", ErrInvalid, s)
	}
}

// PageQuery holds the optional parameters of a page read. Nil fields fall
// back to defaults.
type PageQuery struct {
	Page      *int64    `json:"page,omitempty"`
	PerPage   *int64    `json:"per_page,omitempty"`
	Sort      SortOrder `json:"sort,omitempty"`
	Pinned    *bool     `json:"pinned,omitempty"`
	Substring *string   `json:"substring,omitempty"`
}

// ResolvedQuery is a PageQuery with defaults applied and bounds checked.
type ResolvedQuery struct {
	Page      int64
	PerPage   int64
	Sort      SortOrder
	Pinned    *bool
	Substring string
}

// Offset is the number of matching entries preceding this page.
func (q ResolvedQuery) Offset() int64 {
	return (q.Page - 1) * q.PerPage
}

// Resolve applies defaults and validates the query.
func (q PageQuery) Resolve() (ResolvedQuery, error) {
	r := ResolvedQuery{
		Page:    DefaultPage,
		PerPage: DefaultPerPage,
		Pinned:  q.Pinned,
	}
	if q.Page != nil {
		if *q.Page < 1 {
			return ResolvedQuery{}, fmt.Errorf("%w: page must be >= 1, got %d", ErrInvalid, *q.Page)
		}
		r.Page = *q.Page
	}
	if q.PerPage != nil {
		if *q.PerPage < 1 {
			return ResolvedQuery{}, fmt.Errorf("%w: per_page must be >= 1, got %d", ErrInvalid, *q.PerPage)
		}
		r.PerPage = min(*q.PerPage, MaxPerPage)
	}
	sort, err := ParseSortOrder(string(q.Sort))
	if err != nil {
		return ResolvedQuery{}, err
	}
	r.Sort = sort
	if q.Substring != nil {
		r.Substring = NormalizeContent(*q.Substring)
	}
	return r, nil
}

// NewPage assembles a Page from the entries of one page and the total number
// of matching entries.
func NewPage(entries []Entry, total int64, q ResolvedQuery) Page {
	if entries == nil {
		entries = []Entry{}
	}
	totalPages := (total + q.PerPage - 1) / q.PerPage
	return Page{
		Entries:    entries,
		HasNext:    q.Page < totalPages,
		Total:      total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: totalPages,
	}
}

// EntryPatch is a partial update. Nil fields are left unchanged.
type EntryPatch struct {
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p EntryPatch) Empty() bool {
	return p.Content == nil && p.Pinned == nil
}

// Apply returns e with the patch applied and UpdatedAt set to now.
// An empty patch returns e unchanged.
func (p EntryPatch) Apply(e Entry, now time.Time) Entry {
	if p.Empty() {
		return e
	}
	if p.Content != nil {
		e.Content = NormalizeContent(*p.Content)
	}
	if p.Pinned != nil {
		e.Pinned = *p.Pinned
	}
	e.UpdatedAt = &now
	return e
}
