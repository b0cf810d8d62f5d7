package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXExtractor renders every sheet as a titled block of tab-separated rows.
type XLSXExtractor struct{}

// Extract implements Extractor.
func (XLSXExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrap(err, "xlsx: open workbook")
	}

	var b strings.Builder
	for i, sheet := range f.Sheets {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Sheet: " + sheet.Name + "\n")
		for _, row := range sheet.Rows {
			cells := rowToStrings(row)
			if strings.TrimSpace(strings.Join(cells, "")) == "" {
				continue
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
