package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadCSV_RussianHeaders(t *testing.T) {
	path := writeCSV(t, "catalog.csv",
		"Товар,Цена,Категория\n"+
			"Короб 200x200,1 500 руб.,Короба\n"+
			"Винт М6,5,Крепеж\n")

	records, err := NewLoader(zap.NewNop()).LoadCSV(path, 1)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != 1 || records[0].Name != "Короб 200x200" ||
		records[0].UnitCost != 1500 || records[0].Category != "Короба" {
		t.Errorf("record 0 = %+v", records[0])
	}
	if records[1].ID != 2 || records[1].UnitCost != 5 {
		t.Errorf("record 1 = %+v", records[1])
	}
}

func TestLoadCSV_EnglishHeaders(t *testing.T) {
	path := writeCSV(t, "catalog.csv",
		"id,name,price,category\n"+
			"42,Cable tray 600,980.50,trays\n")

	records, err := NewLoader(zap.NewNop()).LoadCSV(path, 1)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != 42 || records[0].UnitCost != 980.50 {
		t.Errorf("record = %+v", records[0])
	}
}

func TestLoadCSV_RejectsMalformedRows(t *testing.T) {
	path := writeCSV(t, "catalog.csv",
		"Товар,Цена\n"+
			",100\n"+ // no name
			"Гайка М6,12\n")

	records, err := NewLoader(zap.NewNop()).LoadCSV(path, 1)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Name != "Гайка М6" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestLoadCSV_StripsTrailingPriceFromName(t *testing.T) {
	path := writeCSV(t, "catalog.csv",
		"Товар,Цена\n"+
			"Короб 100x100 - 61263 руб.,61 263 руб.\n")

	records, err := NewLoader(zap.NewNop()).LoadCSV(path, 1)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if records[0].Name != "Короб 100x100" {
		t.Errorf("name = %q, want trailing price stripped", records[0].Name)
	}
	if records[0].UnitCost != 61263 {
		t.Errorf("unit cost = %g, want 61263", records[0].UnitCost)
	}
}

func TestLoadCSV_BOMHeader(t *testing.T) {
	path := writeCSV(t, "catalog.csv",
		"\ufeffТовар,Цена\n"+
			"Лоток 600,980\n")

	records, err := NewLoader(zap.NewNop()).LoadCSV(path, 1)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if len(records) != 1 || records[0].Name != "Лоток 600" {
		t.Errorf("records = %+v", records)
	}
}

func TestLoadCSV_NoNameColumn(t *testing.T) {
	path := writeCSV(t, "catalog.csv", "Цена,Категория\n100,Короба\n")

	_, err := NewLoader(zap.NewNop()).LoadCSV(path, 1)
	if err == nil {
		t.Fatal("expected error for missing name column")
	}
}

func TestLoadAll_SequentialIDs(t *testing.T) {
	p1 := writeCSV(t, "a.csv", "Товар,Цена\nКороб,100\nКрышка,50\n")
	p2 := writeCSV(t, "b.csv", "Товар,Цена\nВинт М6,5\n")

	records, err := NewLoader(zap.NewNop()).LoadAll([]string{p1, p2})
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.ID != int64(i+1) {
			t.Errorf("record %d id = %d, want %d", i, rec.ID, i+1)
		}
	}
}

func TestLoadAll_EmptyCatalog(t *testing.T) {
	path := writeCSV(t, "empty.csv", "Товар,Цена\n")

	_, err := NewLoader(zap.NewNop()).LoadAll([]string{path})
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Короб 100x100 - 61263 руб.", "Короб 100x100"},
		{"Короб 100x100 - 61263 руб", "Короб 100x100"},
		{"Короб 100x100", "Короб 100x100"},
		{"  Винт М6  ", "Винт М6"},
	}
	for _, tt := range tests {
		if got := CleanName(tt.in); got != tt.want {
			t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
