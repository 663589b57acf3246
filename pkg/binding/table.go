package binding

import (
	"fmt"
	"sync"

	"github.com/backkem/matter-switch/pkg/datamodel"
	"github.com/backkem/matter-switch/pkg/fabric"
	"github.com/backkem/matter-switch/pkg/wire"
)

// DefaultMaxBindings is the table capacity used when none is configured.
const DefaultMaxBindings = 10

const tableVersion = 1

// TableConfig configures a Table.
type TableConfig struct {
	// MaxEntries bounds the table size.
	// Default: DefaultMaxBindings
	MaxEntries int

	// Storage persists the table after every change.
	// Default: NewMemoryStorage()
	Storage Storage
}

type tableRecord struct {
	Version uint8   `cbor:"1,keyasint"`
	Entries []Entry `cbor:"2,keyasint"`
}

// Table is the ordered binding table. Safe for concurrent use.
type Table struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
	storage    Storage
}

// NewTable creates a Table and loads any entries already in storage.
func NewTable(config TableConfig) (*Table, error) {
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultMaxBindings
	}
	if config.Storage == nil {
		config.Storage = NewMemoryStorage()
	}

	t := &Table{
		maxEntries: config.MaxEntries,
		storage:    config.Storage,
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) load() error {
	data, err := t.storage.Load()
	if err != nil {
		return fmt.Errorf("binding: load table: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var rec tableRecord
	if err := wire.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("binding: decode table: %w", err)
	}
	if rec.Version != tableVersion {
		return fmt.Errorf("binding: unsupported table version %d", rec.Version)
	}
	if len(rec.Entries) > t.maxEntries {
		return fmt.Errorf("%w: stored %d entries, capacity %d", ErrTableFull, len(rec.Entries), t.maxEntries)
	}
	for i, e := range rec.Entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("binding: stored entry %d: %w", i, err)
		}
	}
	t.entries = rec.Entries
	return nil
}

// persist must be called with mu held.
func (t *Table) persist() error {
	data, err := wire.Marshal(tableRecord{Version: tableVersion, Entries: t.entries})
	if err != nil {
		return fmt.Errorf("binding: encode table: %w", err)
	}
	if err := t.storage.Save(data); err != nil {
		return fmt.Errorf("binding: save table: %w", err)
	}
	return nil
}

// Add appends e and returns its index.
func (t *Table) Add(e Entry) (int, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, existing := range t.entries {
		if existing == e {
			return 0, ErrDuplicate
		}
	}
	if len(t.entries) >= t.maxEntries {
		return 0, ErrTableFull
	}

	t.entries = append(t.entries, e)
	if err := t.persist(); err != nil {
		t.entries = t.entries[:len(t.entries)-1]
		return 0, err
	}
	return len(t.entries) - 1, nil
}

// Remove deletes the entry at index and returns it. Later entries shift
// down by one.
func (t *Table) Remove(index int) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.entries) {
		return Entry{}, ErrNotFound
	}

	prev := t.entries
	removed := prev[index]
	next := make([]Entry, 0, len(prev)-1)
	next = append(next, prev[:index]...)
	next = append(next, prev[index+1:]...)

	t.entries = next
	if err := t.persist(); err != nil {
		t.entries = prev
		return Entry{}, err
	}
	return removed, nil
}

// RemoveFabric deletes every entry of fabricIndex and returns them.
func (t *Table) RemoveFabric(fabricIndex fabric.FabricIndex) ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.entries
	var kept, removed []Entry
	for _, e := range prev {
		if e.FabricIndex == fabricIndex {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	t.entries = kept
	if err := t.persist(); err != nil {
		t.entries = prev
		return nil, err
	}
	return removed, nil
}

// Get returns the entry at index.
func (t *Table) Get(index int) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[index], true
}

// Entries returns a copy of the table in order.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

// Matching returns, in table order, the entries bound to cluster on the
// local endpoint.
func (t *Table) Matching(endpoint datamodel.EndpointID, cluster datamodel.ClusterID) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Entry
	for _, e := range t.entries {
		if e.Matches(endpoint, cluster) {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Cap returns the table capacity.
func (t *Table) Cap() int {
	return t.maxEntries
}
