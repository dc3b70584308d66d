// Package tuple encodes the rows that enter a partition's export stream
// into the fixed, length-prefixed wire frame a StreamBuffer packs into
// its blocks. Encoding is a pure function of a Schema and a Row; nothing
// here touches buffering, transactional state, or I/O.
package tuple

import "fmt"

// ColumnType is the wire type of one user column. Every type is a
// fixed-width field except ColumnTypeString, which is length-prefixed.
type ColumnType uint8

const (
	ColumnTypeInt64 ColumnType = iota
	ColumnTypeFloat64
	ColumnTypeTimestamp

	// ColumnTypeString is a variable-length column: a 4-byte little-endian
	// length prefix followed by the raw string bytes, the same
	// length-prefixed shape the row-export core uses for its own
	// overflow/non-inline fields, adapted here to a whole column rather
	// than an inline/overflow split.
	ColumnTypeString
)

// fixedWidth is -1 for ColumnTypeString, marking it as variable-length.
const fixedWidth = -1

// Width reports the on-wire size of a value of type t, in bytes, or -1 if
// t is variable-length.
func (t ColumnType) Width() int {
	switch t {
	case ColumnTypeInt64, ColumnTypeFloat64, ColumnTypeTimestamp:
		return 8
	case ColumnTypeString:
		return fixedWidth
	default:
		return 0
	}
}

func (t ColumnType) String() string {
	switch t {
	case ColumnTypeInt64:
		return "INT64"
	case ColumnTypeFloat64:
		return "FLOAT64"
	case ColumnTypeTimestamp:
		return "TIMESTAMP"
	case ColumnTypeString:
		return "STRING"
	default:
		return fmt.Sprintf("ColumnType(%d)", uint8(t))
	}
}

// Column describes one user column of an export schema.
type Column struct {
	Name string
	Type ColumnType
}

// MetadataColumnCount is the number of fixed columns every exported row
// carries ahead of its user columns: transaction id, timestamp, sequence
// number, partition id, site id, and export operation kind. This is the
// same prefix the partition's execution engine attaches to every tuple it
// hands to the export stream, independent of the table's own schema.
const MetadataColumnCount = 6

// metadataWidth is the total byte width of the six fixed metadata
// columns (txn id, timestamp, sequence, partition id, site id, export
// operation kind). Every metadata column occupies a full eight-byte
// slot on the wire, the op kind included, so that a reader can treat
// the metadata prefix as a flat array of int64-sized fields.
const metadataWidth = MetadataColumnCount * 8

// OpKind is the export operation a row represents, mirroring the DML
// that produced it.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpDelete
	OpUpdateOld
	OpUpdateNew
)

func (k OpKind) String() string {
	switch k {
	case OpInsert:
		return "INSERT"
	case OpDelete:
		return "DELETE"
	case OpUpdateOld:
		return "UPDATE_OLD"
	case OpUpdateNew:
		return "UPDATE_NEW"
	default:
		return fmt.Sprintf("OpKind(%d)", uint8(k))
	}
}

// Schema is the ordered set of user columns a Row's Values must match.
// A Schema is immutable once built; every Row serialized against it must
// supply exactly len(Columns) values, in order.
type Schema struct {
	Columns []Column
}

// NewSchema builds a Schema from its user columns. It does not validate
// column names; duplicate or empty names are a caller error the encoder
// never needs to detect.
func NewSchema(columns ...Column) Schema {
	return Schema{Columns: columns}
}

// ColumnNames returns the user column names in schema order, the same
// slice a TopEnd push carries alongside a block so a downstream reader
// doesn't need separate schema lookup.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// RowWidth returns the encoded size, in bytes, of a row matching this
// schema whose variable-length columns (if any) carry zero-length
// values: the 4-byte length prefix, the null-mask bytes, the fixed
// metadata columns, and the fixed-width user columns. For the
// 5-int64-column reference schema this is exact (94 = 4 + 2 + 48 + 40);
// with a string column present it is only a lower bound, since that
// column's actual width grows with the value written to it. It is the
// minimum block capacity a row of this schema can possibly fit in.
func (s Schema) RowWidth() int {
	width := lengthPrefixWidth + s.nullMaskWidth() + metadataWidth
	for _, c := range s.Columns {
		if w := c.Type.Width(); w > 0 {
			width += w
		} else if c.Type == ColumnTypeString {
			width += 4
		}
	}
	return width
}

// HasVariableWidthColumns reports whether any column in s is
// variable-length, meaning RowWidth is a lower bound rather than an
// exact size.
func (s Schema) HasVariableWidthColumns() bool {
	for _, c := range s.Columns {
		if c.Type == ColumnTypeString {
			return true
		}
	}
	return false
}

// nullMaskWidth is the number of bytes needed for one bit per column,
// metadata columns included: ceil((MetadataColumnCount+len(Columns))/8).
func (s Schema) nullMaskWidth() int {
	total := MetadataColumnCount + len(s.Columns)
	return (total + 7) / 8
}
