// Package catalog loads product records from CSV price lists.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

// Column headers accepted in price-list CSVs, Russian or English.
var columnAliases = map[string]string{
	"товар":     "name",
	"название":  "name",
	"name":      "name",
	"цена":      "price",
	"стоимость": "price",
	"price":     "price",
	"категория": "category",
	"category":  "category",
	"id":        "id",
}

var trailingPriceRe = regexp.MustCompile(`\s*-\s*\d+\s*руб\.?\s*$`)

// Loader reads and validates catalog CSV files.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a catalog loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadCSV reads product records from one CSV file. Malformed rows are
// rejected at this boundary and logged; ids are assigned from row order when
// the file has no id column.
func (l *Loader) LoadCSV(path string, startID int64) ([]domain.ProductRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	records, err := l.parse(f, startID)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return records, nil
}

// LoadAll reads and concatenates several CSV files, numbering ids across all
// of them.
func (l *Loader) LoadAll(paths []string) ([]domain.ProductRecord, error) {
	var all []domain.ProductRecord
	nextID := int64(1)

	for _, p := range paths {
		records, err := l.LoadCSV(p, nextID)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		nextID = int64(len(all)) + 1
	}

	if len(all) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	return all, nil
}

func (l *Loader) parse(r io.Reader, startID int64) ([]domain.ProductRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // price lists are hand-edited, tolerate ragged rows

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := columnAliases[key]; ok {
			cols[canonical] = i
		}
	}
	nameCol, ok := cols["name"]
	if !ok {
		return nil, fmt.Errorf("no product name column in header %v", header)
	}
	priceCol, hasPrice := cols["price"]
	categoryCol, hasCategory := cols["category"]
	idCol, hasID := cols["id"]

	var (
		records []domain.ProductRecord
		skipped int
		nextID  = startID
	)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.logger.Warn("Skipping unreadable catalog row", zap.Int("line", line), zap.Error(err))
			skipped++
			continue
		}

		rec := domain.ProductRecord{ID: nextID}
		if hasID && idCol < len(row) {
			if id, err := strconv.ParseInt(strings.TrimSpace(row[idCol]), 10, 64); err == nil {
				rec.ID = id
			}
		}
		if nameCol < len(row) {
			rec.Name = CleanName(row[nameCol])
		}
		if hasPrice && priceCol < len(row) {
			rec.UnitCost = domain.ParsePrice(row[priceCol])
		}
		if hasCategory && categoryCol < len(row) {
			rec.Category = strings.TrimSpace(row[categoryCol])
		}

		if err := rec.Validate(); err != nil {
			l.logger.Warn("Rejecting malformed catalog row", zap.Int("line", line), zap.Error(err))
			skipped++
			continue
		}

		records = append(records, rec)
		nextID++
	}

	if skipped > 0 {
		l.logger.Info("Catalog rows rejected", zap.Int("skipped", skipped), zap.Int("loaded", len(records)))
	}
	return records, nil
}

// CleanName strips a trailing price fragment from a product name, e.g.
// "Короб 100x100 - 61263 руб." -> "Короб 100x100".
func CleanName(name string) string {
	return strings.TrimSpace(trailingPriceRe.ReplaceAllString(name, ""))
}
