package decode

import (
	"errors"
	"strconv"

	"github.com/TFMV/bqdecode/schema"
	"github.com/TFMV/bqdecode/table"
	"github.com/TFMV/bqdecode/wire"
)

// decodeValue writes one scalar node into row i of a scalar column. Only
// text nodes carry data; anything else, and any text that fails to parse,
// stores a null.
func decodeValue(col table.Column, i int, node wire.Node) {
	text, ok := wire.Text(node)
	if !ok {
		col.SetNull(i)
		return
	}

	switch col.Type() {
	case schema.Integer:
		v := col.(*table.Vector[int64])
		if x, err := strconv.ParseInt(text, 10, 64); err == nil {
			v.Set(i, x)
		} else {
			v.SetNull(i)
		}
	case schema.Float, schema.Timestamp:
		v := col.(*table.Vector[float64])
		// Overflow keeps the signed infinity ParseFloat returns.
		if x, err := strconv.ParseFloat(text, 64); err == nil || errors.Is(err, strconv.ErrRange) {
			v.Set(i, x)
		} else {
			v.SetNull(i)
		}
	case schema.Boolean:
		// Only the first byte is looked at: "true", "TRUE" and "T..." are true.
		col.(*table.Vector[bool]).Set(i, len(text) > 0 && (text[0] == 'T' || text[0] == 't'))
	case schema.String:
		col.(*table.Vector[string]).Set(i, text)
	case schema.Time:
		setParsed(col.(*table.Vector[float64]), i, text, parseTime)
	case schema.Date:
		setParsed(col.(*table.Vector[int32]), i, text, parseDate)
	case schema.DateTime:
		setParsed(col.(*table.Vector[float64]), i, text, parseDateTime)
	case schema.Record:
		// Records never reach a scalar column.
		col.SetNull(i)
	}
}

func setParsed[T table.Scalar](v *table.Vector[T], i int, text string, parse func(string) (T, bool)) {
	if x, ok := parse(text); ok {
		v.Set(i, x)
		return
	}
	v.SetNull(i)
}
