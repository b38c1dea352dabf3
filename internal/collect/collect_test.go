package collect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleLog = `Reading demand profile winter
Iteration 1: Total annualised cost = 1.9e+08
Shortfall profile --   12.5   3.2   0.0
Iteration 2: Total annualised cost = 182340000.25
Shortfall profile --   4.75   1.1   0.0
Solver finished.
`

func TestExtractMetrics(t *testing.T) {
	cost, shortfall := ExtractMetrics(sampleLog)
	if cost != "182340000.25" {
		t.Errorf("expected last cost, got %q", cost)
	}
	if shortfall != "4.75" {
		t.Errorf("expected first value of last shortfall line, got %q", shortfall)
	}
}

func TestExtractMetricsMissing(t *testing.T) {
	cost, shortfall := ExtractMetrics("no markers here\n")
	if cost != "" || shortfall != "" {
		t.Errorf("expected empty metrics, got cost=%q shortfall=%q", cost, shortfall)
	}
}

func TestExtractMetricsScientific(t *testing.T) {
	cost, _ := ExtractMetrics("Total annualised cost = -3.5E-02\n")
	if cost != "-3.5E-02" {
		t.Errorf("expected scientific notation kept verbatim, got %q", cost)
	}
}

func TestDeriveName(t *testing.T) {
	cases := []struct {
		stem string
		want string
	}{
		{"job_120mt_winter_mk2_flat_491230", "job_120mt_winter_mk2_flat"},
		{"nounderscore", "nounderscore"},
		{"_491230", "_491230"}, // stripping leaves nothing, keep the stem
		{"job__491230", "job"},
	}
	for _, c := range cases {
		if got := DeriveName(c.stem); got != c.want {
			t.Errorf("DeriveName(%q) = %q, want %q", c.stem, got, c.want)
		}
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"job_90mt_winter_mk1_flat_100.log":  sampleLog,
		"job_120mt_winter_mk2_flat_101.log": "Total annualised cost = 7\n",
		"notes.txt":                         "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write log: %v", err)
		}
	}

	rows, err := Scan(dir, ".log")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Sorted by filename, so the 120mt log comes first.
	if rows[0].Name != "job_120mt_winter_mk2_flat" {
		t.Errorf("unexpected first row name %q", rows[0].Name)
	}
	if rows[0].Cost != "7" || rows[0].PeakShortfall != "" {
		t.Errorf("unexpected first row metrics: %+v", rows[0])
	}
	if rows[1].Cost != "182340000.25" {
		t.Errorf("unexpected second row cost: %+v", rows[1])
	}
}

func TestScanMissingDir(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "missing"), ".log"); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.csv")
	rows := []Row{
		{Name: "job_a", Cost: "1.5", PeakShortfall: "0.2"},
		{Name: "job_b", Cost: "", PeakShortfall: ""},
	}
	if err := WriteSummary(path, rows); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Name,Cost,PeakShortfall" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "job_a,1.5,0.2" {
		t.Errorf("unexpected row %q", lines[1])
	}
	if lines[2] != "job_b,," {
		t.Errorf("expected empty cells kept, got %q", lines[2])
	}
}
