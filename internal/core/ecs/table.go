package ecs

// table is a sparse column store. Row r holds the components whose kind owns
// bit r in the registry; column c belongs to entity slot c. Columns are only
// ever appended, so an issued EntityID stays valid across growth.
type table struct {
	rows      [][]Component
	published []bool
	increment int
}

func newTable(capacity, increment int) *table {
	return &table{
		rows:      make([][]Component, 0, 8),
		published: make([]bool, capacity),
		increment: increment,
	}
}

func (t *table) columns() int { return len(t.published) }

func (t *table) inRange(id EntityID) bool { return int(id) < len(t.published) }

// grow appends one increment of empty columns to every row and returns the
// index of the first new column.
func (t *table) grow() EntityID {
	first := len(t.published)
	t.published = growSlice(t.published, t.increment)
	for r := range t.rows {
		if t.rows[r] != nil {
			t.rows[r] = growSlice(t.rows[r], t.increment)
		}
	}
	return EntityID(first)
}

// row returns row r, allocating it (and any rows before it) on first use.
func (t *table) row(r int) []Component {
	for len(t.rows) <= r {
		t.rows = append(t.rows, nil)
	}
	if t.rows[r] == nil {
		t.rows[r] = make([]Component, len(t.published))
	}
	return t.rows[r]
}

func (t *table) get(r int, id EntityID) Component {
	if r >= len(t.rows) || t.rows[r] == nil {
		return nil
	}
	return t.rows[r][id]
}

func (t *table) set(r int, id EntityID, c Component) {
	t.row(r)[id] = c
}

func (t *table) clear(r int, id EntityID) {
	if r < len(t.rows) && t.rows[r] != nil {
		t.rows[r][id] = nil
	}
}

func (t *table) clearColumn(id EntityID) {
	for r := range t.rows {
		if t.rows[r] != nil {
			t.rows[r][id] = nil
		}
	}
}

// bitmask ORs the bit of every non-empty cell in the column.
func (t *table) bitmask(id EntityID) Mask {
	var m Mask
	for r, row := range t.rows {
		if row != nil && row[id] != nil {
			m |= Mask(1) << uint(r)
		}
	}
	return m
}

// column returns the non-empty cells of a column in row order.
func (t *table) column(id EntityID) []Component {
	var out []Component
	for _, row := range t.rows {
		if row != nil && row[id] != nil {
			out = append(out, row[id])
		}
	}
	return out
}

// growSlice returns s extended by n zero values with every existing element
// kept at its index.
func growSlice[T any](s []T, n int) []T {
	out := make([]T, len(s)+n)
	copy(out, s)
	return out
}
