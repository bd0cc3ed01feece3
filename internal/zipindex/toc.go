package zipindex

import (
	"iter"

	"github.com/meigma/memarchive/internal/entrytype"
)

// TOC is the verified table of contents of one archive.
//
// A TOC is immutable once Build returns it and may be read concurrently.
type TOC struct {
	names      []string
	entries    map[string]entrytype.Entry
	records    uint64
	duplicates int
}

func newTOC(capacity int) *TOC {
	return &TOC{
		names:   make([]string, 0, capacity),
		entries: make(map[string]entrytype.Entry, capacity),
	}
}

// add records e under its name unless the name is already present.
// It reports whether e was stored.
func (t *TOC) add(e entrytype.Entry) bool {
	t.records++
	if _, ok := t.entries[e.Name]; ok {
		t.duplicates++
		return false
	}
	t.entries[e.Name] = e
	t.names = append(t.names, e.Name)
	return true
}

// Lookup returns the entry filed under name.
func (t *TOC) Lookup(name string) (entrytype.Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Offset returns the local header offset of name.
func (t *TOC) Offset(name string) (uint64, bool) {
	e, ok := t.entries[name]
	return e.Offset, ok
}

// Contains reports whether name is indexed.
func (t *TOC) Contains(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Len returns the number of distinct names.
func (t *TOC) Len() int {
	return len(t.names)
}

// Records returns the number of central directory records consumed,
// duplicates included.
func (t *TOC) Records() uint64 {
	return t.records
}

// Duplicates returns how many central directory records were ignored because
// their name had already been indexed.
func (t *TOC) Duplicates() int {
	return t.duplicates
}

// Names returns an iterator over indexed names in central directory order.
func (t *TOC) Names() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range t.names {
			if !yield(name) {
				return
			}
		}
	}
}

// Entries returns an iterator over indexed entries in central directory order.
func (t *TOC) Entries() iter.Seq[entrytype.Entry] {
	return func(yield func(entrytype.Entry) bool) {
		for _, name := range t.names {
			if !yield(t.entries[name]) {
				return
			}
		}
	}
}
