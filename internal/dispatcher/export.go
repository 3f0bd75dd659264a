package dispatcher

import (
    "bytes"
    "fmt"

    "github.com/local/rollscan/internal/voter"
)

// Artifact is one exported rendering of a roll.
type Artifact struct {
    Format      string // csv|xlsx
    Name        string
    ContentType string
    Data        []byte
}

const (
    CSVName  = "voters.csv"
    XLSXName = "voters.xlsx"

    CSVContentType  = "text/csv; charset=utf-8"
    XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Export renders voters as CSV and as a workbook.
func Export(voters []voter.Voter) ([]Artifact, error) {
    var csvBuf, xlsxBuf bytes.Buffer
    if err := voter.WriteTable(&csvBuf, voters); err != nil {
        return nil, fmt.Errorf("write csv: %w", err)
    }
    if err := voter.WriteWorkbook(&xlsxBuf, voters); err != nil {
        return nil, fmt.Errorf("write xlsx: %w", err)
    }
    return []Artifact{
        {Format: "csv", Name: CSVName, ContentType: CSVContentType, Data: csvBuf.Bytes()},
        {Format: "xlsx", Name: XLSXName, ContentType: XLSXContentType, Data: xlsxBuf.Bytes()},
    }, nil
}
