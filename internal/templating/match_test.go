package templating

import (
	"testing"

	"github.com/joseph-ayodele/docrouter/constants"
	"github.com/joseph-ayodele/docrouter/internal/entity"
)

func tpl(name string, mode constants.MatchMode, patterns ...string) *entity.Template {
	return &entity.Template{Name: name, Enabled: true, MatchMode: mode, MatchPatterns: patterns}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		tpl       *entity.Template
		text      string
		wantOK    bool
		wantScore int
	}{
		{"all only A", tpl("t", constants.MatchAll, "alpha", "beta"), "alpha here", false, 1},
		{"all both", tpl("t", constants.MatchAll, "alpha", "beta"), "alpha and beta", true, 2},
		{"any one", tpl("t", constants.MatchAny, "alpha", "beta"), "just beta", true, 1},
		{"any none", tpl("t", constants.MatchAny, "alpha", "beta"), "gamma", false, 0},
		{"case insensitive", tpl("t", constants.MatchAll, `\binvoice\b`), "INVOICE #1", true, 1},
		{"multiline anchors", tpl("t", constants.MatchAll, `^total`), "items\nTotal: 4", true, 1},
		{"invalid pattern is a miss", tpl("t", constants.MatchAny, `(`, "ok"), "ok", true, 1},
		{"invalid pattern fails all", tpl("t", constants.MatchAll, `(`, "ok"), "ok", false, 1},
		{"no patterns never match", tpl("t", constants.MatchAny), "anything", false, 0},
		{"no patterns all mode", tpl("t", constants.MatchAll), "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, score := Evaluate(tt.tpl, tt.text)
			if ok != tt.wantOK || score != tt.wantScore {
				t.Errorf("Evaluate = (%v, %d), want (%v, %d)", ok, score, tt.wantOK, tt.wantScore)
			}
		})
	}
}

func TestMatchLastAtMaxWins(t *testing.T) {
	t1 := tpl("T1", constants.MatchAll, "alpha", "beta")
	t2 := tpl("T2", constants.MatchAll, "alpha", "beta")
	got, score, ok := Match([]*entity.Template{t1, t2}, "alpha beta")
	if !ok || got != t2 || score != 2 {
		t.Fatalf("Match = (%v, %d, %v), want T2 score 2", name(got), score, ok)
	}
}

func TestMatchHighestScore(t *testing.T) {
	high := tpl("high", constants.MatchAny, "alpha", "beta")
	low := tpl("low", constants.MatchAny, "alpha")
	got, score, ok := Match([]*entity.Template{high, low}, "alpha beta")
	if !ok || got != high || score != 2 {
		t.Fatalf("Match = (%v, %d, %v), want high score 2", name(got), score, ok)
	}
}

func TestMatchSkipsDisabledAndEmpty(t *testing.T) {
	disabled := tpl("disabled", constants.MatchAny, "alpha")
	disabled.Enabled = false
	empty := tpl("empty", constants.MatchAny)
	if got, _, ok := Match([]*entity.Template{disabled, empty}, "alpha"); ok {
		t.Fatalf("expected no match, got %v", name(got))
	}
	if _, _, ok := Match(nil, "alpha"); ok {
		t.Fatal("expected no match on empty template list")
	}
}

func name(t *entity.Template) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}
