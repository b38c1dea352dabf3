package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func TestReadTable(t *testing.T) {
	path := writeTempTable(t, "target,profile,vessel,tariff\n120mt,winter,mk2,flat\n90mt,summer,mk1,indexed\n")
	rows, err := ReadTable(path, 0)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Target != "120mt" || rows[0].Tariff != "flat" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Vessel != "mk1" {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

// The first record is discarded even when it looks like data.
func TestReadTableDiscardsHeader(t *testing.T) {
	path := writeTempTable(t, "120mt,winter,mk2,flat\n90mt,summer,mk1,indexed\n")
	rows, err := ReadTable(path, 0)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after header discard, got %d", len(rows))
	}
	if rows[0].Target != "90mt" {
		t.Errorf("expected the second record to survive, got %+v", rows[0])
	}
}

func TestReadTableHeaderOnly(t *testing.T) {
	path := writeTempTable(t, "target,profile,vessel,tariff\n")
	rows, err := ReadTable(path, 0)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows, got %d", len(rows))
	}
}

func TestReadTableEmptyFile(t *testing.T) {
	path := writeTempTable(t, "")
	rows, err := ReadTable(path, 0)
	if err != nil {
		t.Fatalf("ReadTable failed on empty file: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected 0 rows, got %d", len(rows))
	}
}

func TestReadTableMissingFile(t *testing.T) {
	_, err := ReadTable(filepath.Join(t.TempDir(), "missing.csv"), 0)
	if err == nil {
		t.Fatal("expected error for missing table")
	}
}

func TestReadTableSanitizesFields(t *testing.T) {
	path := writeTempTable(t, "h1,h2,h3,h4\n120 mt,winter peak,mk 2,flat rate\n")
	rows, err := ReadTable(path, 0)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if rows[0].Target != "120_mt" {
		t.Errorf("expected sanitized target '120_mt', got %q", rows[0].Target)
	}
	if rows[0].Tariff != "flat_rate" {
		t.Errorf("expected sanitized tariff 'flat_rate', got %q", rows[0].Tariff)
	}
}

func TestReadTableRejectsBadFieldCount(t *testing.T) {
	path := writeTempTable(t, "h1,h2,h3,h4\n120mt,winter,mk2\n")
	_, err := ReadTable(path, 0)
	if err == nil {
		t.Fatal("expected error for 3-field row")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected line number in error, got: %v", err)
	}
}

func TestReadTableRejectsInvalidField(t *testing.T) {
	path := writeTempTable(t, "h1,h2,h3,h4\n120mt,winter,mk2,flat\n90mt,sum;mer,mk1,flat\n")
	_, err := ReadTable(path, 0)
	if err == nil {
		t.Fatal("expected error for field with shell syntax")
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected line number in error, got: %v", err)
	}
}

func TestReadTableSemicolonDelimiter(t *testing.T) {
	path := writeTempTable(t, "h1;h2;h3;h4\n120mt;winter;mk2;flat\n")
	rows, err := ReadTable(path, ';')
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Profile != "winter" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestWriteTableRoundTrip(t *testing.T) {
	scenarios := []Scenario{
		{Target: "120mt", Profile: "winter", Vessel: "mk2", Tariff: "flat"},
		{Target: "90mt", Profile: "summer", Vessel: "mk1", Tariff: "indexed"},
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteTable(path, scenarios, 0); err != nil {
		t.Fatalf("WriteTable failed: %v", err)
	}
	back, err := ReadTable(path, 0)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(back) != len(scenarios) {
		t.Fatalf("expected %d rows back, got %d", len(scenarios), len(back))
	}
	for i := range back {
		if back[i] != scenarios[i] {
			t.Errorf("row %d mismatch: got %+v, want %+v", i, back[i], scenarios[i])
		}
	}
}
