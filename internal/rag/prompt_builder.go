package rag

import (
	"fmt"
	"strings"
	"unicode"

	"citerag/internal/domain"
	"citerag/internal/i18n"
)

// Output markers the parser looks for.
const (
	AnswerMarker    = "ANSWER:"
	CitationsMarker = "CITATIONS:"
)

// Localizer supplies localized prompt labels and messages.
type Localizer interface {
	Labels(lang string) i18n.Labels
	NoContext(lang string) string
}

// PromptBuilder turns a built context and a question into a prompt.
type PromptBuilder interface {
	// Language resolves the language a question will be answered in.
	Language(query, lang string) string
	Build(built BuiltContext, query, lang string) domain.Prompt
}

// PromptOptions toggles prompt rules and language handling.
type PromptOptions struct {
	DefaultLang      string
	AutoDetect       bool
	RequireCitations bool
	AdmitUnknown     bool
}

// LocalizedPromptBuilder builds citation-aware prompts in the question's language.
type LocalizedPromptBuilder struct {
	localizer Localizer
	opts      PromptOptions
}

var _ PromptBuilder = (*LocalizedPromptBuilder)(nil)

// NewLocalizedPromptBuilder creates a prompt builder. An empty default
// language means English.
func NewLocalizedPromptBuilder(localizer Localizer, opts PromptOptions) *LocalizedPromptBuilder {
	if strings.TrimSpace(opts.DefaultLang) == "" {
		opts.DefaultLang = i18n.English
	}
	return &LocalizedPromptBuilder{localizer: localizer, opts: opts}
}

// portuguesePhrases select pt-BR on a single hit. portugueseWords also occur
// in English text, so two distinct ones are required.
var portuguesePhrases = []string{
	"o que", "por que", "como funciona", "para que", "qual e", "quais sao",
	"voce sabe", "nao sei", "me explique",
}

var portugueseWords = []string{
	"qual", "quais", "como", "onde", "quando", "quem", "porque", "voce", "nao",
	"sao", "sobre", "explique", "existe", "pode", "isso", "uma", "para",
}

const portugueseLetters = "ãõçâêôáéíóúà"

// Language returns lang when given. Otherwise, with auto-detection on,
// Portuguese cue phrases, two cue words or diacritics select pt-BR; anything else gets the default.
func (p *LocalizedPromptBuilder) Language(query, lang string) string {
	if strings.TrimSpace(lang) != "" {
		return lang
	}
	if p.opts.AutoDetect && looksPortuguese(query) {
		return i18n.Portuguese
	}
	return p.opts.DefaultLang
}

func looksPortuguese(query string) bool {
	lower := strings.ToLower(query)
	if strings.ContainsAny(lower, portugueseLetters) {
		return true
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, phrase := range portuguesePhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	hits := 0
	for _, word := range portugueseWords {
		if strings.Contains(padded, " "+word+" ") {
			hits++
		}
	}
	return hits >= 2
}

// Build assembles the system and user messages.
func (p *LocalizedPromptBuilder) Build(built BuiltContext, query, lang string) domain.Prompt {
	labels := p.localizer.Labels(p.Language(query, lang))

	rules := []string{labels.RuleUseOnlyContext}
	if p.opts.RequireCitations {
		rules = append(rules, labels.RuleCiteClaims)
	}
	if p.opts.AdmitUnknown {
		rules = append(rules, labels.RuleAdmitUnknown)
	}
	rules = append(rules, labels.RuleOutputFormat)

	var system strings.Builder
	for i, rule := range rules {
		if i > 0 {
			system.WriteString("\n")
		}
		fmt.Fprintf(&system, "- %s", rule)
	}

	var user strings.Builder
	user.WriteString(labels.ContextHeader)
	user.WriteString("\n")
	if strings.TrimSpace(built.Text) == "" {
		user.WriteString(labels.ContextEmpty)
	} else {
		user.WriteString(built.Text)
	}
	user.WriteString("\n\n")

	if len(built.Citations) > 0 {
		user.WriteString(labels.ReferencesHeader)
		user.WriteString("\n")
		for _, c := range built.Citations {
			fmt.Fprintf(&user, "[%d] %s — %s\n", c.N, referenceKey(c), c.Title)
		}
		user.WriteString("\n")
	}

	user.WriteString(labels.QuestionHeader)
	user.WriteString("\n")
	user.WriteString(strings.TrimSpace(query))
	user.WriteString("\n\n")

	user.WriteString(labels.FormatHeader)
	user.WriteString("\n")
	fmt.Fprintf(&user, "%s %s\n", AnswerMarker, labels.AnswerPlaceholder)
	fmt.Fprintf(&user, "%s %s", CitationsMarker, labels.CitationPlaceholder)

	return domain.Prompt{System: system.String(), User: user.String()}
}

func referenceKey(c CitationEntry) string {
	if c.ChunkIndex == domain.NoChunkIndex {
		return c.DocumentID
	}
	return fmt.Sprintf("%s#chunk%d", c.DocumentID, c.ChunkIndex)
}
