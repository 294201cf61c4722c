package cmdfmt

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// jsonPrinter renders rows as JSON objects keyed by column name. With a page size of zero every
// row is rendered on its own as NDJSON.
type jsonPrinter struct {
	columns  []table.ColumnConfig
	rows     []map[string]any
	pretty   bool
	pageSize uint
}

func newJSONPrinter(pretty bool, pageSize uint) *jsonPrinter {
	return &jsonPrinter{
		rows:     make([]map[string]any, 0, 1),
		pretty:   pretty,
		pageSize: pageSize,
	}
}

func (p *jsonPrinter) SetColumnConfigs(configs []table.ColumnConfig) {
	p.columns = configs
}

func (p *jsonPrinter) AppendRow(row table.Row, configs ...table.RowConfig) {
	if len(p.columns) != len(row) {
		panic(fmt.Sprintf("unable to print json, the number of columns %d does not match the number of values %d (this is likely a bug)", len(p.columns), len(row)))
	}
	item := make(map[string]any, len(row))
	for i, col := range p.columns {
		if !col.Hidden {
			item[col.Name] = jsonValue(row[i])
		}
	}
	p.rows = append(p.rows, item)
}

// jsonValue prints enums such as page classes or object types by name instead of their number so
// JSON and table output agree.
func jsonValue(v any) any {
	switch v := v.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

func (p *jsonPrinter) Render() string {
	var data any = p.rows
	if p.pageSize == 0 {
		if len(p.rows) != 1 {
			panic(fmt.Sprintf("data contains %d rows but only one row can be printed at a time with ndjson (this is likely a bug)", len(p.rows)))
		}
		data = p.rows[0]
	}

	var out []byte
	var err error
	if p.pretty {
		out, err = json.MarshalIndent(data, "", " ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		panic("unable to marshal json (this is likely a bug): " + err.Error())
	}
	return string(out)
}
