package decode

import (
	"strconv"

	"github.com/TFMV/bqdecode/schema"
	"github.com/TFMV/bqdecode/table"
	"github.com/TFMV/bqdecode/wire"
)

// decodeCell writes node into row i of col, following the repeated and
// record rules of f.
func decodeCell(f *schema.Field, col table.Column, i int, node wire.Node) error {
	switch c := col.(type) {
	case *table.ListColumn:
		elems, err := decodeList(f, node)
		if err != nil {
			return err
		}
		c.SetRow(i, elems)
	case *table.RepeatedRecordColumn:
		nested, err := decodeRepeatedRecord(f, node)
		if err != nil {
			return err
		}
		c.SetRow(i, nested)
	case *table.RecordColumn:
		return decodeRecord(f, c.Row(i), node)
	default:
		decodeValue(col, i, node)
	}
	return nil
}

// decodeList decodes the wrapped array of a repeated scalar into a vector
// sized to the array.
func decodeList(f *schema.Field, node wire.Node) (table.Column, error) {
	items, ok := wire.Array(node)
	if !ok {
		return nil, structural(f.Path(), "array", node)
	}
	elems := table.NewColumn(f, false, len(items))
	for k, item := range items {
		v, err := unwrap(f.Path(), item)
		if err != nil {
			return nil, err
		}
		decodeValue(elems, k, v)
	}
	return elems, nil
}

// decodeRecord fills the single row of a nested record table. A node that is
// not an object is a null struct: every child cell becomes null. Repeated
// children must hold arrays.
func decodeRecord(f *schema.Field, row *table.Table, node wire.Node) error {
	if _, ok := wire.Object(node); !ok {
		row.SetNullRow(0)
		return nil
	}
	values, err := childValues(f.Path(), f.NumFields(), node)
	if err != nil {
		return err
	}
	for j := 0; j < f.NumFields(); j++ {
		child := f.Field(j)
		v, err := unwrap(child.Path(), values[j])
		if err != nil {
			return err
		}
		if child.Repeated() && child.Type() == schema.Record {
			if _, ok := wire.Array(v); !ok {
				return structural(child.Path(), "array", v)
			}
		}
		if err := decodeCell(child, row.Column(j), 0, v); err != nil {
			return err
		}
	}
	return nil
}

// decodeRepeatedRecord turns an array of structs into a struct-of-arrays
// table with one row per element. Anything but an array is zero rows; a
// repeated record inside a single record is checked by decodeRecord.
func decodeRepeatedRecord(f *schema.Field, node wire.Node) (*table.Table, error) {
	items, _ := wire.Array(node)
	nested := table.New(f.Fields(), len(items))

	for r, item := range items {
		v, err := unwrap(f.Path(), item)
		if err != nil {
			return nil, err
		}
		values, err := childValues(f.Path(), f.NumFields(), v)
		if err != nil {
			return nil, err
		}
		for j := 0; j < f.NumFields(); j++ {
			child := f.Field(j)
			cv, err := unwrap(child.Path(), values[j])
			if err != nil {
				return nil, err
			}
			if err := decodeCell(child, nested.Column(j), r, cv); err != nil {
				return nil, err
			}
		}
	}
	return nested, nil
}

// unwrap returns the payload of a wrapped value {"v": ...}. A missing "v"
// reads as null.
func unwrap(path string, node wire.Node) (wire.Node, error) {
	o, ok := wire.Object(node)
	if !ok {
		return nil, structural(path, "wrapped value object", node)
	}
	return o["v"], nil
}

// childValues returns the "f" array of a record object, which must hold at
// least n wrapped values.
func childValues(path string, n int, node wire.Node) ([]wire.Node, error) {
	o, ok := wire.Object(node)
	if !ok {
		return nil, structural(path, "record object", node)
	}
	values, ok := wire.Array(o["f"])
	if !ok {
		return nil, structural(path, "child value array", o["f"])
	}
	if len(values) < n {
		return nil, &StructuralError{
			Field: path,
			Row:   -1,
			Want:  "child value array of " + strconv.Itoa(n),
			Got:   "array of " + strconv.Itoa(len(values)),
		}
	}
	return values, nil
}
