package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is a parsed A1 range. Rows are 1-based; zero rows mean the whole
// column span.
type Range struct {
	Sheet    string
	FirstCol int
	LastCol  int
	FirstRow int
	LastRow  int
}

// ParseRange parses "Sheet!A:L", "Sheet!A1:L1" and "Sheet!A5".
func ParseRange(s string) (Range, error) {
	var r Range
	sheet, cells, ok := strings.Cut(s, "!")
	if !ok {
		cells, sheet = sheet, ""
	}
	r.Sheet = strings.Trim(sheet, "'")

	start, end, hasEnd := strings.Cut(cells, ":")
	if !hasEnd {
		end = start
	}
	var err error
	if r.FirstCol, r.FirstRow, err = parseCell(start); err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if r.LastCol, r.LastRow, err = parseCell(end); err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if r.LastCol < r.FirstCol || (r.LastRow != 0 && r.LastRow < r.FirstRow) {
		return Range{}, fmt.Errorf("range %q: end before start", s)
	}
	return r, nil
}

// Width is the number of columns spanned.
func (r Range) Width() int { return r.LastCol - r.FirstCol + 1 }

// Row returns the single-row range for row n with the same columns.
func (r Range) Row(n int) string {
	return fmt.Sprintf("%s%s%d:%s%d", r.prefix(), ColumnName(r.FirstCol), n, ColumnName(r.LastCol), n)
}

func (r Range) String() string {
	if r.FirstRow == 0 {
		return fmt.Sprintf("%s%s:%s", r.prefix(), ColumnName(r.FirstCol), ColumnName(r.LastCol))
	}
	return fmt.Sprintf("%s%s%d:%s%d", r.prefix(), ColumnName(r.FirstCol), r.FirstRow, ColumnName(r.LastCol), r.LastRow)
}

func (r Range) prefix() string {
	if r.Sheet == "" {
		return ""
	}
	return r.Sheet + "!"
}

func parseCell(c string) (col, row int, err error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	i := 0
	for i < len(c) && c[i] >= 'A' && c[i] <= 'Z' {
		col = col*26 + int(c[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("cell %q has no column", c)
	}
	if i < len(c) {
		row, err = strconv.Atoi(c[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("cell %q has a bad row", c)
		}
	}
	return col, row, nil
}

// ColumnName converts a 1-based column index to letters: 1 -> A, 27 -> AA.
func ColumnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// Clip returns the cells of a full row that fall inside r's columns.
func (r Range) Clip(row []string) []string {
	if len(row) < r.FirstCol {
		return []string{}
	}
	end := min(len(row), r.LastCol)
	return append([]string{}, row[r.FirstCol-1:end]...)
}

// Place writes cells into a copy of the full row dst starting at r's
// first column.
func (r Range) Place(dst, cells []string) []string {
	out := PadRow(append([]string(nil), dst...), r.FirstCol-1+len(cells))
	copy(out[r.FirstCol-1:], cells)
	return out
}

// PadRow extends row with empty cells up to n.
func PadRow(row []string, n int) []string {
	for len(row) < n {
		row = append(row, "")
	}
	return row
}
