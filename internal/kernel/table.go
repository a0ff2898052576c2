package kernel

// Table stores flat per-type constraint arrays with an active flag per
// entry. Kernels embed it to get the window operations of the boundary.
type Table struct {
	records map[ConstraintType][]Record
	active  map[ConstraintType][]bool
}

func NewTable() *Table {
	return &Table{
		records: make(map[ConstraintType][]Record),
		active:  make(map[ConstraintType][]bool),
	}
}

func (tb *Table) clamp(t ConstraintType, offset int) int {
	n := len(tb.records[t])
	if offset < 0 {
		return 0
	}
	if offset > n {
		return n
	}
	return offset
}

func (tb *Table) InsertConstraints(t ConstraintType, offset int, records []Record) {
	if len(records) == 0 {
		return
	}
	offset = tb.clamp(t, offset)

	recs := tb.records[t]
	next := make([]Record, 0, len(recs)+len(records))
	next = append(next, recs[:offset]...)
	next = append(next, copyRecords(records)...)
	next = append(next, recs[offset:]...)
	tb.records[t] = next

	act := tb.active[t]
	flags := make([]bool, 0, len(act)+len(records))
	flags = append(flags, act[:offset]...)
	for range records {
		flags = append(flags, true)
	}
	flags = append(flags, act[offset:]...)
	tb.active[t] = flags
}

func (tb *Table) UpdateConstraints(t ConstraintType, offset int, records []Record) {
	recs := tb.records[t]
	for i, r := range copyRecords(records) {
		if j := offset + i; j >= 0 && j < len(recs) {
			recs[j] = r
		}
	}
}

func (tb *Table) RemoveConstraints(t ConstraintType, offset, count int) {
	if count <= 0 {
		return
	}
	offset = tb.clamp(t, offset)
	end := offset + count
	if end > len(tb.records[t]) {
		end = len(tb.records[t])
	}
	tb.records[t] = append(tb.records[t][:offset:offset], tb.records[t][end:]...)
	tb.active[t] = append(tb.active[t][:offset:offset], tb.active[t][end:]...)
}

func (tb *Table) setActive(t ConstraintType, indices []int, on bool) {
	act := tb.active[t]
	for _, i := range indices {
		if i >= 0 && i < len(act) {
			act[i] = on
		}
	}
}

func (tb *Table) ActivateConstraints(t ConstraintType, indices []int) {
	tb.setActive(t, indices, true)
}

func (tb *Table) DeactivateConstraints(t ConstraintType, indices []int) {
	tb.setActive(t, indices, false)
}

func (tb *Table) ConstraintCount(t ConstraintType) int {
	return len(tb.records[t])
}

// Records returns the stored window for type t. The slice is shared.
func (tb *Table) Records(t ConstraintType) []Record {
	return tb.records[t]
}

func (tb *Table) Active(t ConstraintType, i int) bool {
	act := tb.active[t]
	return i >= 0 && i < len(act) && act[i]
}

func copyRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = Record{
			Particles: append([]int(nil), r.Particles...),
			Params:    append([]float64(nil), r.Params...),
		}
	}
	return out
}
