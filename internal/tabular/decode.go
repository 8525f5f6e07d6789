package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	pkgerrors "github.com/SpiritGreen/mushroom-checker-backend/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Row is one named-field record of an uploaded table. Values are strings or
// numbers depending on the source format; blank cells decode to nil.
type Row map[string]any

// DecodeFile turns an uploaded CSV or XLSX file into ordered rows. The format
// is chosen by file extension, matching the upload contract.
func DecodeFile(filename string, data []byte) ([]Row, error) {
	switch fileType(filename) {
	case "csv":
		return DecodeCSV(bytes.NewReader(data))
	case "xlsx":
		return DecodeXLSX(bytes.NewReader(data))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "only CSV or XLSX files are supported")
	}
}

// DecodeCSV reads a header row plus data rows, preserving input order.
func DecodeCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading csv row")
		}
		rows = append(rows, rowFromRecord(header, record))
	}
	return rows, nil
}

// DecodeXLSX reads the first sheet of a workbook as header plus data rows.
func DecodeXLSX(r io.Reader) ([]Row, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading xlsx file")
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	if sheet == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "xlsx file has no sheets")
	}
	records, err := book.GetRows(sheet)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading xlsx rows")
	}
	if len(records) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "xlsx file is empty")
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for _, record := range records[1:] {
		rows = append(rows, rowFromRecord(header, record))
	}
	return rows, nil
}

func rowFromRecord(header, record []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		if col == "" {
			continue
		}
		if i >= len(record) || strings.TrimSpace(record[i]) == "" {
			row[col] = nil
			continue
		}
		row[col] = strings.TrimSpace(record[i])
	}
	return row
}

func fileType(filename string) string {
	parts := strings.Split(filename, ".")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToLower(parts[len(parts)-1])
}
