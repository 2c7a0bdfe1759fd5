package textutil

import (
	"math"
	"reflect"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ação", "acao"},
		{"Café com pão", "Cafe com pao"},
		{"naïve résumé", "naive resume"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Fold(tt.input); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "Hello World", []string{"hello", "world"}},
		{"punctuation runs", "BM25--ranking, (fast)!", []string{"bm25", "ranking", "fast"}},
		{"diacritics", "Informação Útil", []string{"informacao", "util"}},
		{"blank", "   ", nil},
		{"only punctuation", "?!...", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Tokenize(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestTokenSet(t *testing.T) {
	set := TokenSet("Don't PANIC, don't panic!")
	want := map[string]struct{}{"dont": {}, "panic": {}}
	if !reflect.DeepEqual(set, want) {
		t.Errorf("TokenSet() = %v, want %v", set, want)
	}
	if len(TokenSet("... !!! ---")) != 0 {
		t.Errorf("punctuation-only text should produce an empty set")
	}
}

func TestJaccard(t *testing.T) {
	a := TokenSet("the quick brown fox")
	b := TokenSet("the quick red fox")
	got := Jaccard(a, b)
	if math.Abs(got-0.6) > 1e-9 {
		t.Errorf("Jaccard() = %f, want 0.6", got)
	}
	if Jaccard(a, a) != 1 {
		t.Errorf("Jaccard(a, a) should be 1")
	}
	if Jaccard(a, TokenSet("")) != 0 {
		t.Errorf("Jaccard with empty set should be 0")
	}
}

func TestRemoveStopWords(t *testing.T) {
	got := RemoveStopWords([]string{"the", "index", "of", "documentos", "para"})
	want := []string{"index", "documentos"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RemoveStopWords() = %v, want %v", got, want)
	}
	if RemoveStopWords([]string{"the", "and"}) != nil {
		t.Errorf("all-stopword input should return nil")
	}
}

func TestCollapseWhitespace(t *testing.T) {
	if got := CollapseWhitespace("  a \n\t b   c "); got != "a b c" {
		t.Errorf("CollapseWhitespace() = %q", got)
	}
}
