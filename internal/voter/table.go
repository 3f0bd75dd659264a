package voter

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEmptyTable is returned when the input has no data lines after the header.
	ErrEmptyTable = errors.New("empty or missing data")
	// ErrNoValidRows is returned when every data row was skipped.
	ErrNoValidRows = errors.New("no valid voter rows")
)

const bom = "\ufeff"

// Columns is the fixed export header, in column order.
var Columns = []string{
	"Serial No", "EPIC No", "Name (English)", "Name (Telugu)", "Relative Name",
	"House No", "Age", "Gender", "Assembly", "Parliament", "Polling Station",
	"Voted", "Party", "Source Page", "Timestamp",
}

// minColumns is the smallest row that still carries serial, id and name.
const minColumns = 3

// WriteTable writes voters as a BOM-prefixed, comma-delimited table.
// Photos are not written.
func WriteTable(w io.Writer, voters []Voter) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(bom)
	bw.WriteString(strings.Join(Columns, ","))
	bw.WriteString("\n")
	for _, v := range voters {
		bw.WriteString(strings.Join(row(v), ","))
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func row(v Voter) []string {
	voted := "NO"
	if v.IsVoted {
		voted = "YES"
	}
	party := ""
	if v.VotedParty != nil {
		party = *v.VotedParty
	}
	ts := ""
	if v.Timestamp != nil {
		ts = v.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return []string{
		quote(v.SlNo), quote(v.EpicNo), quote(v.NameEn), quote(v.NameTe), quote(v.RelativeName),
		quote(v.HouseNo), quote(v.Age), quote(v.Gender), quote(v.AssemblyName), quote(v.ParliamentName),
		quote(v.PollingStationNo), voted, quote(party), strconv.Itoa(v.OriginalPage), ts,
	}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ParseTable reads a table produced by WriteTable or a spreadsheet re-save
// of it. It returns either every valid row or an error.
func ParseTable(data []byte) ([]Voter, error) {
	data = bytes.TrimPrefix(data, []byte(bom))
	text := string(data)
	lines := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	if lines < 2 {
		return nil, ErrEmptyTable
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var out []Voter
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) < minColumns {
			continue
		}
		out = append(out, fromRow(rec))
	}
	if len(out) == 0 {
		return nil, ErrNoValidRows
	}
	return out, nil
}

// sniffDelimiter picks ';' when the header line carries one, else ','.
func sniffDelimiter(text string) rune {
	header := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		header = text[:i]
	}
	if strings.Contains(header, ";") {
		return ';'
	}
	return ','
}

func fromRow(rec []string) Voter {
	col := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	v := Voter{
		SlNo:             col(0),
		EpicNo:           col(1),
		NameEn:           col(2),
		NameTe:           col(3),
		RelativeName:     col(4),
		HouseNo:          col(5),
		Age:              col(6),
		Gender:           col(7),
		AssemblyName:     col(8),
		ParliamentName:   col(9),
		PollingStationNo: col(10),
		IsVoted:          strings.EqualFold(col(11), "YES"),
	}
	if p := col(12); p != "" && !strings.EqualFold(p, "null") {
		v.VotedParty = &p
	}
	if n, err := strconv.Atoi(col(13)); err == nil {
		v.OriginalPage = n
	}
	if ts := col(14); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			v.Timestamp = &t
		}
	}
	return v
}
