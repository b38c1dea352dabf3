package scenario

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadTable parses a scenario table from path. The first record is a header
// and is always discarded, even when it does not look like one. Every
// following record must carry exactly four fields (target, profile, vessel,
// tariff); fields are sanitized and validated, and a bad row aborts the parse
// with its line number. A table with only a header yields an empty slice.
func ReadTable(path string, comma rune) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	return ParseTable(f, comma)
}

// ParseTable reads scenarios from r. A zero comma means ','.
func ParseTable(r io.Reader, comma rune) ([]Scenario, error) {
	cr := csv.NewReader(r)
	if comma != 0 {
		cr.Comma = comma
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	// Header line. An empty file has no rows, which is fine.
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var out []Scenario
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields (target, profile, vessel, tariff), got %d", line, len(rec))
		}
		s := Scenario{Target: rec[0], Profile: rec[1], Vessel: rec[2], Tariff: rec[3]}.Sanitized()
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteTable writes scenarios to path as a delimited table under the
// canonical header. A zero comma means ','.
func WriteTable(path string, scenarios []Scenario, comma rune) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if comma != 0 {
		cw.Comma = comma
	}
	if err := cw.Write([]string{"target", "profile", "vessel", "tariff"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range scenarios {
		if err := cw.Write([]string{s.Target, s.Profile, s.Vessel, s.Tariff}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return f.Close()
}
