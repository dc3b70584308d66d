package tuple

// RowMeta is the fixed prefix every exported row carries ahead of its
// user columns. It is attached by the execution engine, not derived
// from the table's own schema.
type RowMeta struct {
	TxnID       int64
	Timestamp   int64
	Sequence    int64
	PartitionID int64
	SiteID      int64
	Op          OpKind
}

// Row is one table row on its way into the export stream: its metadata
// prefix plus its user column values, in schema order.
//
// Values holds one entry per Schema.Columns, or nil at index i to mean
// the i-th user column is SQL NULL for this row. A nil Values[i] is
// distinct from the zero value of the column's Go type.
type Row struct {
	Meta   RowMeta
	Values []any
}
