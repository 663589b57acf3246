package fabric

import (
	"errors"
	"sync"
)

// Table errors.
var (
	ErrTableFull        = errors.New("fabric: table full")
	ErrFabricNotFound   = errors.New("fabric: not found")
	ErrFabricConflict   = errors.New("fabric: fabric already exists with same root key and fabric ID")
	ErrFabricIndexInUse = errors.New("fabric: fabric index already in use")
)

// TableConfig configures a Table.
type TableConfig struct {
	// MaxFabrics is the capacity of the table.
	// Default: DefaultSupportedFabrics
	MaxFabrics int

	// OnRemoved is called after a fabric leaves the table, outside the
	// table lock. Bindings and sessions scoped to the index hang off it.
	OnRemoved func(FabricIndex)
}

// Table is the thread-safe local fabric table.
type Table struct {
	mu      sync.RWMutex
	fabrics map[FabricIndex]*Info
	config  TableConfig
}

// NewTable creates an empty table.
func NewTable(config TableConfig) *Table {
	if config.MaxFabrics < MinSupportedFabrics {
		config.MaxFabrics = DefaultSupportedFabrics
	}
	if config.MaxFabrics > MaxSupportedFabrics {
		config.MaxFabrics = MaxSupportedFabrics
	}
	return &Table{
		fabrics: make(map[FabricIndex]*Info),
		config:  config,
	}
}

// Add stores a copy of info.
func (t *Table) Add(info *Info) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.fabrics) >= t.config.MaxFabrics {
		return ErrTableFull
	}
	if _, exists := t.fabrics[info.FabricIndex]; exists {
		return ErrFabricIndexInUse
	}
	for _, existing := range t.fabrics {
		if existing.RootPublicKey == info.RootPublicKey && existing.FabricID == info.FabricID {
			return ErrFabricConflict
		}
	}
	t.fabrics[info.FabricIndex] = info.Clone()
	return nil
}

// Remove deletes the fabric at index and fires OnRemoved.
func (t *Table) Remove(index FabricIndex) error {
	t.mu.Lock()
	if _, exists := t.fabrics[index]; !exists {
		t.mu.Unlock()
		return ErrFabricNotFound
	}
	delete(t.fabrics, index)
	t.mu.Unlock()

	if t.config.OnRemoved != nil {
		t.config.OnRemoved(index)
	}
	return nil
}

// Get returns a copy of the fabric at index.
func (t *Table) Get(index FabricIndex) (*Info, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	info, exists := t.fabrics[index]
	if !exists {
		return nil, false
	}
	return info.Clone(), true
}

// FindByCompressedFabricID looks a fabric up by its compressed ID.
func (t *Table) FindByCompressedFabricID(cfid [CompressedFabricIDSize]byte) (*Info, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, info := range t.fabrics {
		if info.CompressedFabricID == cfid {
			return info.Clone(), true
		}
	}
	return nil, false
}

// List returns copies of all entries ordered by index.
func (t *Table) List() []*Info {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*Info, 0, len(t.fabrics))
	for idx := FabricIndexMin; idx <= FabricIndexMax && len(result) < len(t.fabrics); idx++ {
		if info, ok := t.fabrics[idx]; ok {
			result = append(result, info.Clone())
		}
	}
	return result
}

// Count returns the number of fabrics.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.fabrics)
}

// AllocateFabricIndex returns the lowest unused index.
func (t *Table) AllocateFabricIndex() (FabricIndex, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.fabrics) >= t.config.MaxFabrics {
		return FabricIndexInvalid, ErrTableFull
	}
	for idx := FabricIndexMin; idx <= FabricIndexMax; idx++ {
		if _, exists := t.fabrics[idx]; !exists {
			return idx, nil
		}
	}
	return FabricIndexInvalid, ErrTableFull
}
