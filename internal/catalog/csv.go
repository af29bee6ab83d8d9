// Package catalog reads show catalog exports into rag.ShowRecord values.
//
// The expected layout is the Kaggle netflix_titles.csv export: a header row
// followed by one row per title. Only show_id, title and description are
// used; every other column is ignored and column order does not matter.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/54b3r/showfinder-go/internal/rag"
)

// Required header names.
const (
	ColumnShowID      = "show_id"
	ColumnTitle       = "title"
	ColumnDescription = "description"
)

// Reader reads ShowRecords from a CSV stream.
type Reader struct {
	r *csv.Reader

	// column indexes resolved from the header row
	idID, idTitle, idDesc int
	width                 int

	// Skipped counts rows dropped because show_id was empty.
	Skipped int
	// line is the 1-based data row number of the last row read.
	line int
}

// NewReader reads the header row from r and returns a Reader positioned at
// the first data row. A header missing any of the required columns is an
// error.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("catalog: empty input, expected a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		// Strip a UTF-8 BOM that spreadsheet exports leave on the first cell.
		h = strings.TrimPrefix(h, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	rd := &Reader{r: cr}
	var missing []string
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{ColumnShowID, &rd.idID},
		{ColumnTitle, &rd.idTitle},
		{ColumnDescription, &rd.idDesc},
	} {
		i, ok := idx[c.name]
		if !ok {
			missing = append(missing, c.name)
			continue
		}
		*c.dst = i
		if i+1 > rd.width {
			rd.width = i + 1
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("catalog: header is missing required column(s): %s", strings.Join(missing, ", "))
	}
	return rd, nil
}

// Read returns the next record. It returns io.EOF when the input is
// exhausted. Rows with an empty show_id are skipped and counted in Skipped.
func (rd *Reader) Read() (rag.ShowRecord, error) {
	for {
		row, err := rd.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return rag.ShowRecord{}, io.EOF
			}
			return rag.ShowRecord{}, fmt.Errorf("catalog: row %d: %w", rd.line+1, err)
		}
		rd.line++

		if len(row) < rd.width {
			return rag.ShowRecord{}, fmt.Errorf("catalog: row %d: want at least %d fields, got %d", rd.line, rd.width, len(row))
		}

		id := strings.TrimSpace(row[rd.idID])
		if id == "" {
			rd.Skipped++
			continue
		}
		return rag.ShowRecord{
			ID:          id,
			Title:       strings.TrimSpace(row[rd.idTitle]),
			Description: strings.TrimSpace(row[rd.idDesc]),
		}, nil
	}
}

// ReadAll reads every remaining record.
func (rd *Reader) ReadAll() ([]rag.ShowRecord, error) {
	var shows []rag.ShowRecord
	for {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return shows, nil
		}
		if err != nil {
			return nil, err
		}
		shows = append(shows, rec)
	}
}

// ReadCSV parses a whole catalog export.
func ReadCSV(r io.Reader) ([]rag.ShowRecord, error) {
	rd, err := NewReader(r)
	if err != nil {
		return nil, err
	}
	return rd.ReadAll()
}
