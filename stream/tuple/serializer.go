package tuple

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const lengthPrefixWidth = 4

// ErrColumnCount is returned by Serialize when a Row's Values slice does
// not have exactly one entry per schema column.
type ErrColumnCount struct {
	Want, Got int
}

func (e ErrColumnCount) Error() string {
	return fmt.Sprintf("tuple: row has %d values, schema wants %d", e.Got, e.Want)
}

// ErrColumnType is returned by Serialize when a value's Go type doesn't
// match its column's declared ColumnType.
type ErrColumnType struct {
	Column string
	Want   ColumnType
	Got    any
}

func (e ErrColumnType) Error() string {
	return fmt.Sprintf("tuple: column %q wants %s, got %T", e.Column, e.Want, e.Got)
}

// Serialize encodes row against schema into the fixed wire frame a
// StreamBuffer appends to its current block. The frame is:
//
//	[4]  row length, big-endian, counting every byte after this prefix
//	[n]  null mask, one bit per column (metadata columns first, then
//	     user columns in schema order), packed high-bit-first within
//	     each byte, n = ceil((MetadataColumnCount+len(schema.Columns))/8)
//	[48] the six metadata columns, little-endian int64 each
//	[..] the user columns, little-endian, in schema order; a fixed-width
//	     column whose null bit is set still occupies its width, zeroed;
//	     a string column is always a 4-byte length prefix followed by
//	     its bytes, zero-length when its null bit is set
//
// Serialize is a pure function: it allocates and returns a new slice and
// never touches a StreamBuffer or StreamBlock.
func Serialize(schema Schema, row Row) ([]byte, error) {
	if len(row.Values) != len(schema.Columns) {
		return nil, ErrColumnCount{Want: len(schema.Columns), Got: len(row.Values)}
	}

	maskWidth := schema.nullMaskWidth()
	mask := make([]byte, maskWidth)

	data := new(bytes.Buffer)
	binary.Write(data, binary.LittleEndian, row.Meta.TxnID)
	binary.Write(data, binary.LittleEndian, row.Meta.Timestamp)
	binary.Write(data, binary.LittleEndian, row.Meta.Sequence)
	binary.Write(data, binary.LittleEndian, row.Meta.PartitionID)
	binary.Write(data, binary.LittleEndian, row.Meta.SiteID)
	binary.Write(data, binary.LittleEndian, int64(row.Meta.Op))

	for i, col := range schema.Columns {
		v := row.Values[i]
		if v == nil {
			setBit(mask, MetadataColumnCount+i)
			if col.Type == ColumnTypeString {
				binary.Write(data, binary.LittleEndian, uint32(0))
				continue
			}
			data.Write(make([]byte, col.Type.Width()))
			continue
		}
		if err := writeColumn(data, col, v); err != nil {
			return nil, err
		}
	}

	body := make([]byte, 0, maskWidth+data.Len())
	body = append(body, mask...)
	body = append(body, data.Bytes()...)

	out := make([]byte, lengthPrefixWidth+len(body))
	binary.BigEndian.PutUint32(out[:lengthPrefixWidth], uint32(len(body)))
	copy(out[lengthPrefixWidth:], body)
	return out, nil
}

func writeColumn(buf *bytes.Buffer, col Column, v any) error {
	switch col.Type {
	case ColumnTypeInt64, ColumnTypeTimestamp:
		n, ok := v.(int64)
		if !ok {
			return ErrColumnType{Column: col.Name, Want: col.Type, Got: v}
		}
		return binary.Write(buf, binary.LittleEndian, n)
	case ColumnTypeFloat64:
		f, ok := v.(float64)
		if !ok {
			return ErrColumnType{Column: col.Name, Want: col.Type, Got: v}
		}
		return binary.Write(buf, binary.LittleEndian, math.Float64bits(f))
	case ColumnTypeString:
		s, ok := v.(string)
		if !ok {
			return ErrColumnType{Column: col.Name, Want: col.Type, Got: v}
		}
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
			return err
		}
		_, err := buf.WriteString(s)
		return err
	default:
		return ErrColumnType{Column: col.Name, Want: col.Type, Got: v}
	}
}

func setBit(mask []byte, index int) {
	mask[index/8] |= 1 << uint(7-index%8)
}
