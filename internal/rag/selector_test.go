package rag

import (
	"errors"
	"strings"
	"testing"

	"citerag/internal/apperr"
)

func src(doc string, idx int, text string) ContextSource {
	return ContextSource{DocumentID: doc, Title: strings.ToUpper(doc), ChunkIndex: idx, Text: text}
}

func sourceLabels(sources []ContextSource) []string {
	out := make([]string, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.DocumentID+string(rune('0'+s.ChunkIndex)))
	}
	return out
}

func TestContextSelector_RoundRobin(t *testing.T) {
	sources := []ContextSource{
		src("A", 0, "a0"), src("A", 1, "a1"), src("A", 2, "a2"),
		src("B", 0, "b0"), src("B", 1, "b1"),
		src("C", 0, "c0"),
	}

	tests := []struct {
		name   string
		topK   int
		perDoc int
		want   string
	}{
		{"cap two", 5, 2, "A0 B0 C0 A1 B1"},
		{"cap one", 5, 1, "A0 B0 C0"},
		{"topK smaller than a round", 2, 2, "A0 B0"},
		{"everything", 10, 3, "A0 B0 C0 A1 B1 A2"},
		{"topK zero", 0, 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ContextSelector{}.Select(sources, tt.topK, tt.perDoc)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if s := strings.Join(sourceLabels(got), " "); s != tt.want {
				t.Errorf("Select() = %q, want %q", s, tt.want)
			}
		})
	}
}

func TestContextSelector_Validation(t *testing.T) {
	if _, err := (ContextSelector{}).Select(nil, -1, 2); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("negative topK error = %v", err)
	}
	if _, err := (ContextSelector{}).Select(nil, 3, 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("zero cap error = %v", err)
	}
	got, err := ContextSelector{}.Select(nil, 3, 2)
	if err != nil || len(got) != 0 {
		t.Errorf("empty sources = %v, %v", got, err)
	}
}
