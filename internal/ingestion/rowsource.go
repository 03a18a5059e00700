package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file type")

	// ErrParserUnavailable is returned when the spreadsheet parser rejects the
	// payload before any row can be read.
	ErrParserUnavailable = errors.New("spreadsheet parser unavailable")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Format identifies the declared layout of an uploaded monitoring file.
type Format string

const (
	FormatTabularText Format = "tabular-text"
	FormatSpreadsheet Format = "spreadsheet"
)

// DetectFormat maps a filename extension to a format. Anything but
// .csv/.xlsx/.xls fails with ErrUnsupportedFormat.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return FormatTabularText, nil
	case ".xlsx", ".xls":
		return FormatSpreadsheet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// RowSource is a lazy, finite, single-pass sequence of row records keyed by
// normalized header name. Next returns io.EOF when exhausted. The sequence is
// not restartable.
type RowSource interface {
	Next() (map[string]string, error)
	Close() error
}

// NewRowSource builds the format-specific source for the file. The header row
// is consumed eagerly so header problems surface before the first data row.
func NewRowSource(fileName string, r io.Reader) (RowSource, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatTabularText:
		return newCSVRowSource(r)
	default:
		return newExcelRowSource(r)
	}
}

// normalizeHeaders lower-cases and trims field names; empty or duplicate
// names become col_<index>.
func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		if name == "" || seen[name] {
			name = fmt.Sprintf("col_%d", idx)
		}
		seen[name] = true
		headers[idx] = name
	}
	return headers
}

// recordToRow maps one data row onto the headers; cells past the header width
// get synthetic col_<index> keys so nothing is dropped.
func recordToRow(headers []string, record []string) map[string]string {
	row := make(map[string]string, len(record))
	for i, cell := range record {
		key := fmt.Sprintf("col_%d", i)
		if i < len(headers) {
			key = headers[i]
		}
		row[key] = strings.ToValidUTF8(cell, "�")
	}
	return row
}

func emptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

type csvRowSource struct {
	reader  *csv.Reader
	headers []string
}

func newCSVRowSource(r io.Reader) (*csvRowSource, error) {
	buffered := bufio.NewReader(r)
	if prefix, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = buffered.Discard(len(byteOrderMark))
	}

	reader := csv.NewReader(buffered)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &csvRowSource{reader: reader}, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	return &csvRowSource{
		reader:  reader,
		headers: normalizeHeaders(header),
	}, nil
}

func (s *csvRowSource) Next() (map[string]string, error) {
	if s.headers == nil {
		return nil, io.EOF
	}
	for {
		record, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		if emptyRecord(record) {
			continue
		}
		return recordToRow(s.headers, record), nil
	}
}

func (s *csvRowSource) Close() error { return nil }

type excelRowSource struct {
	file    *excelize.File
	rows    *excelize.Rows
	headers []string
}

func newExcelRowSource(r io.Reader) (*excelRowSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParserUnavailable, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrParserUnavailable)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %v", ErrParserUnavailable, err)
	}

	source := &excelRowSource{file: f, rows: rows}
	// First non-empty row supplies the header.
	for rows.Next() {
		header, err := rows.Columns()
		if err != nil {
			_ = source.Close()
			return nil, fmt.Errorf("failed to read sheet header: %w", err)
		}
		if emptyRecord(header) {
			continue
		}
		source.headers = normalizeHeaders(header)
		break
	}

	return source, nil
}

func (s *excelRowSource) Next() (map[string]string, error) {
	if s.headers == nil {
		return nil, io.EOF
	}
	for s.rows.Next() {
		record, err := s.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet row: %w", err)
		}
		if emptyRecord(record) {
			continue
		}
		return recordToRow(s.headers, record), nil
	}
	if err := s.rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate sheet rows: %w", err)
	}
	return nil, io.EOF
}

func (s *excelRowSource) Close() error {
	var err error
	if s.rows != nil {
		err = s.rows.Close()
	}
	if s.file != nil {
		if closeErr := s.file.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
