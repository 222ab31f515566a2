// Package export writes scan results to disk as CSV tables and SVG plots.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/EmmaVellard/SolarConflux/model"
	"github.com/EmmaVellard/SolarConflux/timectrl"
)

// Header is the first row of every exported CSV file.
var Header = []string{"start_date", "end_date", "geometry", "spacecrafts"}

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no alignment records to export")

// FolderName names the result folder after the first start date and the
// end date of the last record, e.g. "2025-01-01_to_2025-03-02". records
// must already be ordered by start.
func FolderName(records []model.AlignmentRecord) string {
	if len(records) == 0 {
		return ""
	}
	first, last := records[0], records[len(records)-1]
	return first.Start.UTC().Format(time.DateOnly) + "_to_" + last.End.UTC().Format(time.DateOnly)
}

// WriteCSV sorts records by start and writes them to
// <baseDir>/<folder>/<folder>.csv, returning the file path.
func WriteCSV(baseDir string, records []model.AlignmentRecord) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	sorted := append([]model.AlignmentRecord(nil), records...)
	model.SortRecords(sorted)

	folder := FolderName(sorted)
	dir := filepath.Join(baseDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, folder+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := EncodeCSV(f, sorted); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// EncodeCSV writes the header and one row per record, in the given order.
func EncodeCSV(w io.Writer, records []model.AlignmentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Start.UTC().Format(timectrl.Layout),
			r.End.UTC().Format(timectrl.Layout),
			string(r.Mode),
			FormatGroup(r.Group),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file produced by EncodeCSV.
func ReadCSV(r io.Reader) ([]model.AlignmentRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("missing header")
	}
	for i, h := range Header {
		if rows[0][i] != h {
			return nil, fmt.Errorf("unexpected header %q", rows[0])
		}
	}

	out := make([]model.AlignmentRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		start, err := time.ParseInLocation(timectrl.Layout, row[0], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("row %d: start: %w", i+1, err)
		}
		end, err := time.ParseInLocation(timectrl.Layout, row[1], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("row %d: end: %w", i+1, err)
		}
		mode, ok := model.ParseMode(row[2])
		if !ok {
			return nil, fmt.Errorf("row %d: unknown geometry %q", i+1, row[2])
		}
		group, err := ParseGroup(row[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, model.AlignmentRecord{Start: start, End: end, Mode: mode, Group: group})
	}
	return out, nil
}

// FormatGroup renders a group as a bracketed list of quoted names,
// e.g. ['Earth', 'Mars']. A name holding a single quote and no double quote
// is wrapped in double quotes; otherwise backslashes and the quote character
// are escaped with a backslash.
func FormatGroup(g model.Group) string {
	parts := make([]string, len(g))
	for i, name := range g {
		parts[i] = quoteName(name)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func quoteName(name string) string {
	q := "'"
	if strings.Contains(name, "'") && !strings.Contains(name, `"`) {
		q = `"`
	}
	escaped := strings.NewReplacer(`\`, `\\`, q, `\`+q).Replace(name)
	return q + escaped + q
}

// ParseGroup is the inverse of FormatGroup.
func ParseGroup(s string) (model.Group, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed body list %q", s)
	}
	rest := strings.TrimSpace(s[1 : len(s)-1])
	var names []string
	for rest != "" {
		name, n, err := unquoteName(rest)
		if err != nil {
			return nil, fmt.Errorf("%v in %q", err, s)
		}
		names = append(names, name)
		rest = strings.TrimSpace(rest[n:])
		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return nil, fmt.Errorf("malformed body list %q", s)
		}
		rest = strings.TrimSpace(rest[1:])
	}
	return model.Group(names), nil
}

// unquoteName reads one quoted name from the start of s and returns it with
// the number of bytes consumed.
func unquoteName(s string) (string, int, error) {
	q := s[0]
	if q != '\'' && q != '"' {
		return "", 0, fmt.Errorf("unquoted name")
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		case c == q:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated name")
}
