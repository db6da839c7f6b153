package registry

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
)

var (
	ErrInvalidName    = errors.New("invalid name")
	ErrInvalidAddress = errors.New("invalid address")
)

// Record is one registered name and the address it resolves to.
type Record struct {
	Name    string     `json:"name"`
	Address netip.Addr `json:"address"`
}

// Table maps names to IPv4 addresses. Names compare case-insensitively and
// every write replaces the previous address.
type Table struct {
	records map[string]netip.Addr
	order   []string
	mu      sync.RWMutex
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (t *Table) Upsert(name string, addr netip.Addr) error {
	key := normalize(name)
	if key == "" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return fmt.Errorf("%w: %v is not IPv4", ErrInvalidAddress, addr)
	}
	t.mu.Lock()
	if _, ok := t.records[key]; !ok {
		t.order = append(t.order, key)
	}
	t.records[key] = addr
	t.mu.Unlock()
	return nil
}

func (t *Table) Lookup(name string) (netip.Addr, bool) {
	t.mu.RLock()
	addr, ok := t.records[normalize(name)]
	t.mu.RUnlock()
	return addr, ok
}

// Enumerate returns a snapshot of all records in first-registration order.
func (t *Table) Enumerate() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	result := make([]Record, 0, len(t.order))
	for _, name := range t.order {
		result = append(result, Record{Name: name, Address: t.records[name]})
	}
	return result
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func NewTable() *Table {
	return &Table{
		records: make(map[string]netip.Addr),
	}
}
