package voter

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func strPtr(s string) *string { return &s }

func sampleVoters() []Voter {
	ts := time.Date(2024, 5, 13, 9, 30, 0, 0, time.UTC)
	return []Voter{
		{
			EpicNo: "ABC1234567", SlNo: "1", NameEn: `Ravi "Raju" Kumar`, NameTe: "రవి",
			RelativeName: "Suresh, Kumar", HouseNo: "1-23/A", Age: "34", Gender: "Male",
			AssemblyName: "123-Nellore", ParliamentName: "Nellore", PollingStationNo: "45",
			PhotoBase64: "aGVsbG8=", OriginalPage: 3,
			IsVoted: true, VotedParty: strPtr("XYZ"), Timestamp: &ts,
		},
		{
			EpicNo: "DEF7654321", SlNo: "2", NameEn: "Lakshmi", RelativeName: "Ravi",
			HouseNo: "12", Age: "29", Gender: "Female", OriginalPage: 3,
		},
	}
}

func TestTableRoundTrip(t *testing.T) {
	in := sampleVoters()
	var buf bytes.Buffer
	if err := WriteTable(&buf, in); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte(bom)) {
		t.Fatalf("missing BOM")
	}

	out, err := ParseTable(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d rows, want %d", len(out), len(in))
	}
	for i := range in {
		want, got := in[i], out[i]
		if got.PhotoBase64 != "" {
			t.Errorf("row %d: photo should not survive export", i)
		}
		if (want.Timestamp == nil) != (got.Timestamp == nil) ||
			(want.Timestamp != nil && !want.Timestamp.Equal(*got.Timestamp)) {
			t.Errorf("row %d: timestamp %v != %v", i, got.Timestamp, want.Timestamp)
		}
		if (want.VotedParty == nil) != (got.VotedParty == nil) ||
			(want.VotedParty != nil && *want.VotedParty != *got.VotedParty) {
			t.Errorf("row %d: party mismatch", i)
		}
		want.PhotoBase64, want.Timestamp, want.VotedParty = "", nil, nil
		got.Timestamp, got.VotedParty = nil, nil
		if want != got {
			t.Errorf("row %d:\n got %+v\nwant %+v", i, got, want)
		}
	}
}

func TestParseTableHeaderOnly(t *testing.T) {
	for _, in := range []string{"", bom, bom + strings.Join(Columns, ",") + "\n", "a,b,c\n\n  \n"} {
		if _, err := ParseTable([]byte(in)); !errors.Is(err, ErrEmptyTable) {
			t.Errorf("ParseTable(%q) err = %v, want ErrEmptyTable", in, err)
		}
	}
}

func TestParseTableSemicolonAndShortRows(t *testing.T) {
	in := "Serial No;EPIC No;Name\n" +
		"1;ABC1234567;\"Doe; John\";;;;;;;;;yes;null;4;\n" +
		"2;only\n" +
		"3;XYZ7654321;Jane\n"
	out, err := ParseTable([]byte(in))
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[0].NameEn != "Doe; John" || !out[0].IsVoted || out[0].VotedParty != nil || out[0].OriginalPage != 4 {
		t.Errorf("first row = %+v", out[0])
	}
	if out[1].EpicNo != "XYZ7654321" || out[1].IsVoted {
		t.Errorf("second row = %+v", out[1])
	}
}

func TestParseTableNoValidRows(t *testing.T) {
	_, err := ParseTable([]byte("a,b,c\n1,2\n"))
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("err = %v, want ErrNoValidRows", err)
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sampleVoters()); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[1][1] != "ABC1234567" || rows[1][11] != "YES" {
		t.Errorf("row 1 = %v", rows[1])
	}
}

func TestSortBySerialAndMarkVoted(t *testing.T) {
	vs := []Voter{{SlNo: "10"}, {SlNo: "x"}, {SlNo: "2"}, {SlNo: "1"}}
	SortBySerial(vs)
	got := []string{vs[0].SlNo, vs[1].SlNo, vs[2].SlNo, vs[3].SlNo}
	if strings.Join(got, ",") != "1,2,10,x" {
		t.Fatalf("order = %v", got)
	}

	roll := Roll{{EpicNo: "ABC1234567"}, {EpicNo: "DEF7654321"}}
	i := roll.Find("def7654321")
	if i != 1 {
		t.Fatalf("Find = %d", i)
	}
	roll[i].MarkVoted("  ", time.Now())
	if !roll[i].IsVoted || roll[i].VotedParty != nil || roll[i].Timestamp == nil {
		t.Errorf("MarkVoted with empty party = %+v", roll[i])
	}
	if total, voted := roll.Counts(); total != 2 || voted != 1 {
		t.Errorf("Counts = %d, %d", total, voted)
	}
	roll[i].ClearVote()
	if roll[i].IsVoted || roll[i].Timestamp != nil {
		t.Errorf("ClearVote left state: %+v", roll[i])
	}
}

func TestRollMark(t *testing.T) {
	roll := Roll{{EpicNo: "ABC1234567"}, {EpicNo: "DEF7654321"}}
	at := time.Date(2024, 5, 13, 9, 30, 0, 0, time.UTC)
	v, err := roll.Mark("abc1234567", true, "Party A", at)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsVoted || *v.VotedParty != "Party A" || !roll[0].IsVoted {
		t.Errorf("marked = %+v", v)
	}
	if total, voted := roll.Counts(); total != 2 || voted != 1 {
		t.Errorf("counts = %d/%d", voted, total)
	}
	if v, _ = roll.Mark("ABC1234567", false, "", at); v.IsVoted || v.Timestamp != nil {
		t.Errorf("cleared = %+v", v)
	}
	if _, err := roll.Mark("ZZZ0000000", true, "x", at); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestParseTableCRLFAndMultilineField(t *testing.T) {
	data := []byte("\ufeffSerial No,EPIC No,Name (English)\r\n" +
		"1,ABC1234567,\"Ravi\r\nKumar\"\r\n" +
		"2,DEF7654321,Sita\r\n")
	vs, err := ParseTable(data)
	if err != nil {
		t.Fatalf("ParseTable: %v", err)
	}
	if len(vs) != 2 || vs[0].NameEn != "Ravi\nKumar" || vs[1].EpicNo != "DEF7654321" {
		t.Errorf("parsed = %+v", vs)
	}
}
