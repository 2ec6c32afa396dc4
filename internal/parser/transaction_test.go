package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/lineledger/internal/models"
)

func TestHeuristicParse(t *testing.T) {
	h := NewHeuristic(nil)

	tests := []struct {
		name         string
		text         string
		wantNil      bool
		wantAmount   string
		wantKind     models.Kind
		wantCategory string
		wantDesc     string
	}{
		{
			name:         "english meal",
			text:         "lunch 150",
			wantAmount:   "150",
			wantKind:     models.KindExpense,
			wantCategory: "food",
			wantDesc:     "lunch",
		},
		{
			name:         "chinese meal with currency word",
			text:         "午餐 120元",
			wantAmount:   "120",
			wantKind:     models.KindExpense,
			wantCategory: "food",
			wantDesc:     "午餐",
		},
		{
			name:         "boilerplate verb is stripped",
			text:         "spent 45.5 on taxi",
			wantAmount:   "45.5",
			wantKind:     models.KindExpense,
			wantCategory: "transport",
			wantDesc:     "taxi",
		},
		{
			name:         "income keyword flips kind",
			text:         "salary 52,000",
			wantAmount:   "52000",
			wantKind:     models.KindIncome,
			wantCategory: "salary",
			wantDesc:     "salary",
		},
		{
			name:         "chinese income",
			text:         "收到 獎金 3000",
			wantAmount:   "3000",
			wantKind:     models.KindIncome,
			wantCategory: "salary",
			wantDesc:     "獎金",
		},
		{
			name:         "dollar prefix",
			text:         "NT$300 movie tickets",
			wantAmount:   "300",
			wantKind:     models.KindExpense,
			wantCategory: "entertainment",
			wantDesc:     "movie tickets",
		},
		{
			name:         "unknown words fall back to truncated prefix",
			text:         "Skydiving-lessons 9000",
			wantAmount:   "9000",
			wantKind:     models.KindExpense,
			wantCategory: "skydivin",
			wantDesc:     "Skydiving-lessons",
		},
		{
			name:         "bare amount is other",
			text:         "200",
			wantAmount:   "200",
			wantKind:     models.KindExpense,
			wantCategory: CategoryOther,
			wantDesc:     "",
		},
		{name: "no amount", text: "hello there", wantNil: true},
		{name: "zero amount", text: "coffee 0", wantNil: true},
		{name: "amount above the cap", text: "lunch 184467440737095616.50", wantNil: true},
		{name: "amount just above the cap", text: "rent 1000000000000.01", wantNil: true},
		{
			name:         "sub-cent amount is left for validation",
			text:         "coffee 0.004",
			wantAmount:   "0.004",
			wantKind:     models.KindExpense,
			wantCategory: "food",
			wantDesc:     "coffee",
		},
		{name: "empty", text: "   ", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Parse(tt.text)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a candidate, got nil")
			}
			if !got.Amount.Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Errorf("Amount = %s, want %s", got.Amount, tt.wantAmount)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
			if got.Source != SourceHeuristic {
				t.Errorf("Source = %s, want heuristic", got.Source)
			}
		})
	}
}

func TestHeuristicRenderIsStable(t *testing.T) {
	h := NewHeuristic(nil)
	inputs := []string{
		"lunch 150",
		"spent 45.5 on taxi",
		"NT$1,200 new shoes",
		"晚餐 花了 380 元",
		"bonus 10000 dollars",
		"300",
		"got 12.75 refund from store",
	}

	for _, text := range inputs {
		first := h.Parse(text)
		if first == nil {
			t.Fatalf("%q: expected a candidate", text)
		}
		second := h.Parse(first.Render())
		if second == nil {
			t.Fatalf("%q: rendered %q did not parse", text, first.Render())
		}
		if !second.Amount.Equal(first.Amount) {
			t.Errorf("%q: amount changed from %s to %s after re-parse of %q",
				text, first.Amount, second.Amount, first.Render())
		}
	}
}

func TestRuleOrderFirstMatchWins(t *testing.T) {
	h := NewHeuristic([]CategoryRule{
		{Category: "first", Keywords: []string{"coffee"}},
		{Category: "second", Keywords: []string{"coffee", "beans"}},
	})
	got := h.Parse("coffee beans 300")
	if got == nil || got.Category != "first" {
		t.Fatalf("expected category first, got %+v", got)
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := strings.Join([]string{
		"- category: pets",
		"  keywords: [vet, kibble, 寵物]",
		"- category: food",
		"  keywords: [lunch]",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules failed: %v", err)
	}
	if len(rules) != 2 || rules[0].Category != "pets" || len(rules[0].Keywords) != 3 {
		t.Fatalf("unexpected rules: %+v", rules)
	}

	got := NewHeuristic(rules).Parse("Vet visit 1500")
	if got == nil || got.Category != "pets" {
		t.Errorf("expected pets, got %+v", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("- category: ''\n  keywords: [x]\n"), 0644)
	if _, err := LoadRules(bad); err == nil {
		t.Error("expected error for empty category")
	}
}
