package core

// Record is a single exported row: an ordered mapping of column label to value.
// A Record always carries every column of its set; absent values are "".
type Record struct {
	columns []string
	values  map[string]string
}

// NewRecord builds a Record over columns. Values missing from values become
// empty strings and keys not in columns are dropped.
func NewRecord(columns []string, values map[string]string) Record {
	cols := make([]string, len(columns))
	copy(cols, columns)

	vals := make(map[string]string, len(cols))
	for _, c := range cols {
		vals[c] = values[c]
	}
	return Record{columns: cols, values: vals}
}

// NewKindRecord builds a Record with the fixed column set of kind.
func NewKindRecord(kind Kind, values map[string]string) Record {
	return NewRecord(kind.Columns(), values)
}

// Get returns the value for column, or "" if the column is not part of the record.
func (r Record) Get(column string) string {
	return r.values[column]
}

// Has reports whether column belongs to the record's column set.
func (r Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Columns returns a copy of the ordered column labels.
func (r Record) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Values returns the values in column order.
func (r Record) Values() []string {
	out := make([]string, len(r.columns))
	for i, c := range r.columns {
		out[i] = r.values[c]
	}
	return out
}

// Map returns a copy of the column→value mapping.
func (r Record) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Len returns the number of columns.
func (r Record) Len() int {
	return len(r.columns)
}
