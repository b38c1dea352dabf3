// Package collect harvests solver metrics from run logs into a summary table.
package collect

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	costRE          = regexp.MustCompile(`Total annualised cost =\s*([+-]?\d+(?:\.\d*)?(?:[Ee][+-]?\d+)?)`)
	shortfallLineRE = regexp.MustCompile(`Shortfall profile --(.*)`)
	numberRE        = regexp.MustCompile(`[+-]?\d+(?:\.\d*)?(?:[Ee][+-]?\d+)?`)
)

// Row is one harvested log file. Missing metrics stay empty rather than
// failing the scan; solvers that hit the time limit write partial logs.
type Row struct {
	Name          string
	Cost          string
	PeakShortfall string
}

// ExtractMetrics pulls the objective value and the peak shortfall out of a
// log. The objective is the numeric token after the last cost marker; the
// shortfall is the first numeric value on the last shortfall profile line.
func ExtractMetrics(text string) (cost, shortfall string) {
	if m := costRE.FindAllStringSubmatch(text, -1); len(m) > 0 {
		cost = m[len(m)-1][1]
	}
	if m := shortfallLineRE.FindAllStringSubmatch(text, -1); len(m) > 0 {
		if n := numberRE.FindString(m[len(m)-1][1]); n != "" {
			shortfall = n
		}
	}
	return cost, shortfall
}

// DeriveName maps a log filename stem to its job name by stripping the
// scheduler job ID suffix after the last underscore. Falls back to the full
// stem when stripping would leave nothing.
func DeriveName(stem string) string {
	name := stem
	if i := strings.LastIndex(stem, "_"); i >= 0 {
		name = stem[:i]
	}
	name = strings.Trim(name, " _")
	if name == "" {
		return stem
	}
	return name
}

// Scan reads every log file under dir with the given extension, in sorted
// order, and returns one row per readable file. Unreadable files are warned
// about and skipped.
func Scan(dir, ext string) ([]Row, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("log dir %s is not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return nil, fmt.Errorf("glob logs: %w", err)
	}
	sort.Strings(paths)

	var rows []Row
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("skipping unreadable log")
			continue
		}
		cost, shortfall := ExtractMetrics(string(data))
		stem := strings.TrimSuffix(filepath.Base(path), ext)
		rows = append(rows, Row{Name: DeriveName(stem), Cost: cost, PeakShortfall: shortfall})
	}
	return rows, nil
}

// WriteSummary writes the harvested rows as a CSV with a header, creating the
// output directory when needed.
func WriteSummary(path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summary dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Name", "Cost", "PeakShortfall"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Name, r.Cost, r.PeakShortfall}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	return f.Close()
}
