// Package studyparser reads digitized study data from CSV files into typed
// records. Digitization tools export in various encodings, so non UTF-8
// input is decoded from ISO-8859-1 before parsing.
package studyparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/avasseur/ipd-api/guyot/entities"
)

// Column headers expected in uploaded CSV files, in order.
var (
	kmHeader     = []string{"endpoint", "arm", "time_months", "survival"}
	atRiskHeader = []string{"endpoint", "arm", "time_months", "n_risk"}
)

// decodeReader returns a UTF-8 reader over the raw bytes, converting from
// ISO-8859-1 when the content is not valid UTF-8.
func decodeReader(raw []byte) io.Reader {
	if utf8.Valid(raw) {
		return bytes.NewReader(raw)
	}
	return charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw))
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d columns %v, got %d", len(want), want, len(got))
	}
	for i, col := range got {
		if !strings.EqualFold(strings.TrimSpace(col), want[i]) {
			return fmt.Errorf("expected column %d to be %q, got %q", i+1, want[i], col)
		}
	}
	return nil
}

func parseFloat(field, value string, line int) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid %s value %q", line, field, value)
	}
	return f, nil
}

// ParseKMCSV reads a survival curve CSV with columns
// endpoint,arm,time_months,survival.
func ParseKMCSV(r io.Reader) ([]entities.KMPoint, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read survival csv: %w", err)
	}

	reader := csv.NewReader(decodeReader(raw))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read survival csv header: %w", err)
	}
	if err := checkHeader(header, kmHeader); err != nil {
		return nil, fmt.Errorf("invalid survival csv header: %w", err)
	}

	var points []entities.KMPoint
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read survival csv: %w", err)
		}
		line++

		t, err := parseFloat("time_months", record[2], line)
		if err != nil {
			return nil, err
		}
		s, err := parseFloat("survival", record[3], line)
		if err != nil {
			return nil, err
		}

		points = append(points, entities.KMPoint{
			Endpoint:   strings.TrimSpace(record[0]),
			Arm:        strings.TrimSpace(record[1]),
			TimeMonths: t,
			Survival:   s,
		})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("survival csv contains no data rows")
	}
	return points, nil
}

// ParseAtRiskCSV reads a number-at-risk CSV with columns
// endpoint,arm,time_months,n_risk.
func ParseAtRiskCSV(r io.Reader) ([]entities.AtRiskPoint, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read at-risk csv: %w", err)
	}

	reader := csv.NewReader(decodeReader(raw))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read at-risk csv header: %w", err)
	}
	if err := checkHeader(header, atRiskHeader); err != nil {
		return nil, fmt.Errorf("invalid at-risk csv header: %w", err)
	}

	var points []entities.AtRiskPoint
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read at-risk csv: %w", err)
		}
		line++

		t, err := parseFloat("time_months", record[2], line)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid n_risk value %q", line, record[3])
		}

		points = append(points, entities.AtRiskPoint{
			Endpoint:   strings.TrimSpace(record[0]),
			Arm:        strings.TrimSpace(record[1]),
			TimeMonths: t,
			NRisk:      n,
		})
	}

	return points, nil
}
