package lvn

import "github.com/you-not-fish/brilopt/internal/bril"

// Entry is one row of the table. Its position is its value number.
type Entry struct {
	Key   Key
	Canon string // variable first holding the value, under its final name
}

// Table is the value-numbering table of one block.
type Table struct {
	entries []Entry
	index   map[uint64][]int
}

func newTable() *Table {
	return &Table{index: make(map[uint64][]int)}
}

// Len returns the number of values in the table.
func (t *Table) Len() int { return len(t.entries) }

// Entry returns the entry of value number vn.
func (t *Table) Entry(vn int) Entry { return t.entries[vn] }

// Lookup returns the value number of k, if present.
func (t *Table) Lookup(k Key) (int, bool) {
	if k.Kind == KeyOpaque {
		return 0, false
	}
	for _, vn := range t.index[k.hash()] {
		if t.entries[vn].Key.Equal(k) {
			return vn, true
		}
	}
	return 0, false
}

// add appends a new value and returns its number.
func (t *Table) add(k Key, canon string) int {
	vn := len(t.entries)
	t.entries = append(t.entries, Entry{Key: k, Canon: canon})
	if k.Kind != KeyOpaque {
		h := k.hash()
		t.index[h] = append(t.index[h], vn)
	}
	return vn
}

// Literal returns the constant held by value number vn, if it is one.
func (t *Table) Literal(vn int) (bril.Literal, bool) {
	if vn < 0 || vn >= len(t.entries) {
		return bril.Literal{}, false
	}
	k := t.entries[vn].Key
	if !k.IsLiteral() {
		return bril.Literal{}, false
	}
	return k.Lit, true
}
