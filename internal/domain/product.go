package domain

import (
	"fmt"
	"strings"
)

// ProductRecord is an immutable catalog entry. Created once at catalog load,
// never mutated afterwards.
type ProductRecord struct {
	ID       int64
	Name     string
	Category string // may be empty
	UnitCost float64
}

// Validate checks a catalog row at the load boundary.
func (p ProductRecord) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name (id=%d)", ErrInvalidProduct, p.ID)
	}
	if p.UnitCost < 0 {
		return fmt.Errorf("%w: negative unit cost %.2f (id=%d)", ErrInvalidProduct, p.UnitCost, p.ID)
	}
	return nil
}

// SearchText builds the canonical text used to embed a product:
// "{category}: {name}", or just the name when the category is empty.
func (p ProductRecord) SearchText() string {
	if p.Category == "" {
		return p.Name
	}
	return p.Category + ": " + p.Name
}
