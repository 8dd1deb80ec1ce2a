// Package loader reads funded proposals from the Catalyst CSV export.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/grantvest/core/logger"
	"github.com/kilianp07/grantvest/core/model"
)

// Config names the columns read from the sheet.
type Config struct {
	NameColumn   string `json:"name_column" yaml:"name_column"`
	AmountColumn string `json:"amount_column" yaml:"amount_column"`
	StatusColumn string `json:"status_column" yaml:"status_column"`
	FundedStatus string `json:"funded_status" yaml:"funded_status"`
}

// DefaultConfig matches the Catalyst Fund 5 export headers.
func DefaultConfig() Config {
	return Config{
		NameColumn:   "Proposal",
		AmountColumn: "REQUESTED $",
		StatusColumn: "STATUS",
		FundedStatus: "FUNDED",
	}
}

// Validate checks that the required column names are set.
func (c Config) Validate() error {
	if c.NameColumn == "" || c.AmountColumn == "" {
		return errors.New("input name_column and amount_column are required")
	}
	if c.StatusColumn == "" || c.FundedStatus == "" {
		return errors.New("input status_column and funded_status are required")
	}
	return nil
}

// ParseFunding parses a currency string such as "$50,000" into a float.
// Anything unparseable, negative or non-finite yields 0.
func ParseFunding(s string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(s)
	d, err := decimal.NewFromString(strings.TrimSpace(cleaned))
	if err != nil || d.IsNegative() {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// Load reads CSV rows from r and returns the funded records in file order.
// Rows whose status does not match cfg.FundedStatus (trimmed, case-insensitive)
// are skipped. A sheet without the status column has no funded rows.
func Load(r io.Reader, cfg Config, log logger.Logger) ([]model.FundingRecord, error) {
	if log == nil {
		log = logger.Nop{}
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	cols := indexColumns(header)
	nameIdx, ok := cols[cfg.NameColumn]
	if !ok {
		return nil, fmt.Errorf("csv: column %q not found", cfg.NameColumn)
	}
	amountIdx, ok := cols[cfg.AmountColumn]
	if !ok {
		return nil, fmt.Errorf("csv: column %q not found", cfg.AmountColumn)
	}
	statusIdx, hasStatus := cols[cfg.StatusColumn]
	if !hasStatus {
		log.Warnf("column %q not found, no rows will match", cfg.StatusColumn)
	}
	want := strings.ToUpper(strings.TrimSpace(cfg.FundedStatus))

	var out []model.FundingRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if !hasStatus || strings.ToUpper(strings.TrimSpace(field(row, statusIdx))) != want {
			continue
		}
		raw := field(row, amountIdx)
		amount := ParseFunding(raw)
		if amount == 0 && strings.TrimSpace(raw) != "" {
			log.Debugw("unparseable funding amount", map[string]any{"line": line, "value": raw})
		}
		out = append(out, model.FundingRecord{Name: field(row, nameIdx), AmountUSD: amount})
	}
	log.Infof("Loaded %d funded projects", len(out))
	return out, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string, cfg Config, log logger.Logger) ([]model.FundingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Load(f, cfg, log)
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
