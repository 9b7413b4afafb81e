package sheet

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	in := "\xEF\xBB\xBFTitle,Description\n\"Login, SSO\",Users sign in\n,\n"
	rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if got := rows[0].At(0).Text(); got != "Title" {
		t.Errorf("header cell = %q (BOM not stripped?)", got)
	}
	if got := rows[1].At(0); got.Kind != CellString || got.Str != "Login, SSO" {
		t.Errorf("quoted cell = %+v", got)
	}
	if rows[2].At(0).Kind != CellEmpty {
		t.Errorf("blank field should be an empty cell")
	}
}

func TestReadXLSX_TypedCells(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	values := map[string]any{
		"A1": "SN", "B1": "Module", "C1": "Level", "D1": "Item",
		"A2": "1", "B2": "Auth", "C2": 0, "D2": "Login", "F2": 2.5,
	}
	for cell, v := range values {
		if err := wb.SetCellValue(sheet, cell, v); err != nil {
			t.Fatalf("SetCellValue %s: %v", cell, err)
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	rows, err := ReadXLSX(bytes.NewReader(buf.Bytes()), "")
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if DetectLayout(rows[0]) != LayoutHierarchical {
		t.Errorf("header not detected as outline: %+v", rows[0])
	}
	if c := rows[1].At(0); c.Kind != CellString || c.Str != "1" {
		t.Errorf("A2 = %+v, want string \"1\"", c)
	}
	if c := rows[1].At(2); c.Kind != CellNumber || c.Num != 0 {
		t.Errorf("C2 = %+v, want number 0", c)
	}
	if c := rows[1].At(4); c.Kind != CellEmpty {
		t.Errorf("E2 = %+v, want empty", c)
	}
	if c := rows[1].At(5); c.Kind != CellNumber || c.Num != 2.5 {
		t.Errorf("F2 = %+v, want number 2.5", c)
	}
}

func TestReadXLSX_UnknownSheet(t *testing.T) {
	wb := excelize.NewFile()
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ReadXLSX(bytes.NewReader(buf.Bytes()), "Missing"); err == nil {
		t.Fatal("expected error for missing sheet")
	}
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	path := t.TempDir() + "/reqs.pdf"
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}
