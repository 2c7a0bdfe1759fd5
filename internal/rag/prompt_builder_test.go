package rag

import (
	"strings"
	"testing"

	"citerag/internal/i18n"
)

func newPromptBuilder(opts PromptOptions) *LocalizedPromptBuilder {
	return NewLocalizedPromptBuilder(i18n.Default(), opts)
}

func TestLocalizedPromptBuilder_Language(t *testing.T) {
	auto := newPromptBuilder(PromptOptions{AutoDetect: true})
	manual := newPromptBuilder(PromptOptions{DefaultLang: i18n.English})

	tests := []struct {
		name    string
		builder *LocalizedPromptBuilder
		query   string
		lang    string
		want    string
	}{
		{"explicit wins", auto, "O que é BM25?", "en", "en"},
		{"cue phrase", auto, "o que e um indice invertido", "", i18n.Portuguese},
		{"diacritics", auto, "Explain configuração", "", i18n.Portuguese},
		{"english question", auto, "What is a vector store?", "", i18n.English},
		{"english with one cue word", auto, "what is a para in typography", "", i18n.English},
		{"english with como", auto, "How do I configure Como lake data", "", i18n.English},
		{"two cue words", auto, "quando usar uma busca hibrida", "", i18n.Portuguese},
		{"cue phrase without accents", auto, "como funciona o reranker", "", i18n.Portuguese},
		{"detection disabled", manual, "O que é BM25?", "", i18n.English},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.builder.Language(tt.query, tt.lang); got != tt.want {
				t.Errorf("Language() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalizedPromptBuilder_Build(t *testing.T) {
	built := BuiltContext{
		Text: "[1] alpha\n\n[2] beta",
		Citations: []CitationEntry{
			{N: 1, DocumentID: "doc-a", Title: "Doc A", ChunkIndex: 0},
			{N: 2, DocumentID: "doc-b", Title: "Doc B", ChunkIndex: -1},
		},
		UsedK: 2,
	}
	p := newPromptBuilder(PromptOptions{RequireCitations: true, AdmitUnknown: true}).Build(built, "  What is alpha?  ", "")

	for _, want := range []string{
		"- Answer using only the information in the provided context.",
		"- Cite every claim",
		"- If the context does not contain the answer",
		"- Reply exactly in the format",
	} {
		if !strings.Contains(p.System, want) {
			t.Errorf("System missing %q:\n%s", want, p.System)
		}
	}
	for _, want := range []string{
		"Context:\n[1] alpha\n\n[2] beta",
		"[1] doc-a#chunk0 — Doc A",
		"[2] doc-b — Doc B",
		"Question:\nWhat is alpha?",
		"ANSWER: ",
		"CITATIONS: [1], [2]",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("User missing %q:\n%s", want, p.User)
		}
	}
}

func TestLocalizedPromptBuilder_OptionalRules(t *testing.T) {
	p := newPromptBuilder(PromptOptions{}).Build(BuiltContext{}, "question", "")
	if strings.Contains(p.System, "Cite every claim") || strings.Contains(p.System, "say that you do not know") {
		t.Errorf("disabled rules present:\n%s", p.System)
	}
	if !strings.Contains(p.User, "(no context available)") {
		t.Errorf("empty context hint missing:\n%s", p.User)
	}
	if strings.Contains(p.User, "Sources:") {
		t.Errorf("reference index rendered without citations:\n%s", p.User)
	}
}

func TestLocalizedPromptBuilder_Portuguese(t *testing.T) {
	p := newPromptBuilder(PromptOptions{AutoDetect: true}).Build(BuiltContext{Text: "[1] x"}, "Como funciona a busca?", "")
	if !strings.Contains(p.User, "Pergunta:") || !strings.Contains(p.System, "Responda usando apenas") {
		t.Errorf("expected Portuguese labels:\n%s\n%s", p.System, p.User)
	}
}
