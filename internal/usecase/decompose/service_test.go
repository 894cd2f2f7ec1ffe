package decompose

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/stroysnab-cloud/procura/internal/domain"
)

type mockParser struct {
	parsed domain.ParsedRequest
	err    error
	calls  int
}

func (m *mockParser) ParseRequest(_ context.Context, _ string) (domain.ParsedRequest, error) {
	m.calls++
	return m.parsed, m.err
}

func TestDecompose_ParserWins(t *testing.T) {
	parser := &mockParser{parsed: domain.ParsedRequest{
		Items: []domain.ParsedItem{
			{Name: "Короб 200x200", Quantity: 1, Specification: "200x200", CandidateCount: 3},
			{Name: "Винт М6", Quantity: 4, Specification: "М6", CandidateCount: 5},
		},
		Confidence: 0.9,
	}}

	items := New(parser, zap.NewNop()).Decompose(context.Background(), "комплект")

	if parser.calls != 1 {
		t.Errorf("parser calls = %d, want 1", parser.calls)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Text != "Короб 200x200" || items[1].Quantity != 4 {
		t.Errorf("items = %+v", items)
	}
}

func TestDecompose_ParserErrorFallsBackToRules(t *testing.T) {
	parser := &mockParser{err: errors.New("model down")}

	items := New(parser, zap.NewNop()).Decompose(context.Background(), "Гайка")

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Text != "Гайка М6" {
		t.Errorf("text = %q, want rule-based enrichment", items[0].Text)
	}
}

func TestDecompose_InvalidParserOutputFallsBackToRules(t *testing.T) {
	parser := &mockParser{parsed: domain.ParsedRequest{
		Items: []domain.ParsedItem{{Name: "", Quantity: 1}},
	}}

	items := New(parser, zap.NewNop()).Decompose(context.Background(), "Гайка")

	if len(items) != 1 || items[0].Text != "Гайка М6" {
		t.Errorf("items = %+v, want rule-based fallback", items)
	}
}

func TestDecompose_NilParserUsesRules(t *testing.T) {
	items := New(nil, zap.NewNop()).Decompose(context.Background(), "Короб 200x200: короб, крышка")

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
}

func TestDecompose_IdentityFallback(t *testing.T) {
	// Один короткий фрагмент: правила отбрасывают его, остаётся identity.
	items := New(nil, zap.NewNop()).Decompose(context.Background(), "Х: я")

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Text != "Х: я" {
		t.Errorf("text = %q, want original query", items[0].Text)
	}
	if items[0].Quantity != 1 || items[0].CandidateCount != domain.DefaultCandidates {
		t.Errorf("item = %+v", items[0])
	}
}

func TestDecompose_ParserCandidateCountClamped(t *testing.T) {
	parser := &mockParser{parsed: domain.ParsedRequest{
		Items: []domain.ParsedItem{
			{Name: "Винт М6", Quantity: 1, CandidateCount: 99},
			{Name: "Гайка М6", Quantity: 1, CandidateCount: 0},
		},
	}}

	items := New(parser, zap.NewNop()).Decompose(context.Background(), "крепеж")

	if items[0].CandidateCount != domain.MaxCandidates {
		t.Errorf("candidate count = %d, want clamped to %d",
			items[0].CandidateCount, domain.MaxCandidates)
	}
	if items[1].CandidateCount != domain.DefaultCandidates {
		t.Errorf("candidate count = %d, want default %d",
			items[1].CandidateCount, domain.DefaultCandidates)
	}
}
