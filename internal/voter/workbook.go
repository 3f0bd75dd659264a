package voter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Voters"

// WriteWorkbook writes voters as an XLSX workbook with the same columns as
// WriteTable.
func WriteWorkbook(w io.Writer, voters []Voter) error {
	f := excelize.NewFile()
	defer f.Close()

	if index, _ := f.GetSheetIndex(sheetName); index == -1 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return fmt.Errorf("new sheet: %w", err)
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	for i, h := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	for r, v := range voters {
		for c, val := range cells(v) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			_ = f.SetCellValue(sheetName, cell, val)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cells(v Voter) []any {
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
		ts = v.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return []any{
		v.SlNo, v.EpicNo, v.NameEn, v.NameTe, v.RelativeName, v.HouseNo, v.Age, v.Gender,
		v.AssemblyName, v.ParliamentName, v.PollingStationNo, voted, party, v.OriginalPage, ts,
	}
}
