// Package i18n holds the localized prompt labels and user-facing messages.
package i18n

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Supported languages.
const (
	English    = "en"
	Portuguese = "pt-BR"
)

// Message keys.
const (
	KeyRuleUseOnlyContext  = "prompt.rule.use_only_context"
	KeyRuleCiteClaims      = "prompt.rule.cite_claims"
	KeyRuleAdmitUnknown    = "prompt.rule.admit_unknown"
	KeyRuleOutputFormat    = "prompt.rule.output_format"
	KeyContextHeader       = "prompt.context.header"
	KeyContextEmpty        = "prompt.context.empty"
	KeyReferencesHeader    = "prompt.references.header"
	KeyQuestionHeader      = "prompt.question.header"
	KeyFormatHeader        = "prompt.format.header"
	KeyAnswerPlaceholder   = "prompt.format.answer_placeholder"
	KeyCitationPlaceholder = "prompt.format.citations_placeholder"
	KeyNoContext           = "answer.no_context"
)

// Labels is the label set a prompt is assembled from.
type Labels struct {
	Lang                string
	RuleUseOnlyContext  string
	RuleCiteClaims      string
	RuleAdmitUnknown    string
	RuleOutputFormat    string
	ContextHeader       string
	ContextEmpty        string
	ReferencesHeader    string
	QuestionHeader      string
	FormatHeader        string
	AnswerPlaceholder   string
	CitationPlaceholder string
}

// Catalog resolves message keys per language. Lookups fall back to English,
// then to the raw key.
type Catalog struct {
	messages  map[string]map[string]string
	supported []string
	matcher   language.Matcher
}

// NewCatalog creates a catalog over messages keyed by language tag then
// message key. English must be present; it is the fallback language.
func NewCatalog(messages map[string]map[string]string) *Catalog {
	supported := []string{English}
	for lang := range messages {
		if lang != English {
			supported = append(supported, lang)
		}
	}
	sort.Strings(supported[1:])
	tags := make([]language.Tag, 0, len(supported))
	for _, lang := range supported {
		tags = append(tags, language.Make(lang))
	}
	return &Catalog{
		messages:  messages,
		supported: supported,
		matcher:   language.NewMatcher(tags),
	}
}

// Default returns the built-in English and Brazilian Portuguese catalog.
func Default() *Catalog {
	return NewCatalog(map[string]map[string]string{
		English:    english,
		Portuguese: portuguese,
	})
}

// Resolve maps a requested language ("pt", "pt_BR", "en-US") to a supported one.
// Blank or unknown languages resolve to English.
func (c *Catalog) Resolve(lang string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return English
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return English
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return English
	}
	return c.supported[idx]
}

// Message returns the text for key in lang.
func (c *Catalog) Message(lang, key string) string {
	if msg, ok := c.messages[c.Resolve(lang)][key]; ok {
		return msg
	}
	if msg, ok := c.messages[English][key]; ok {
		return msg
	}
	return key
}

// Labels returns the prompt label set for lang.
func (c *Catalog) Labels(lang string) Labels {
	resolved := c.Resolve(lang)
	return Labels{
		Lang:                resolved,
		RuleUseOnlyContext:  c.Message(resolved, KeyRuleUseOnlyContext),
		RuleCiteClaims:      c.Message(resolved, KeyRuleCiteClaims),
		RuleAdmitUnknown:    c.Message(resolved, KeyRuleAdmitUnknown),
		RuleOutputFormat:    c.Message(resolved, KeyRuleOutputFormat),
		ContextHeader:       c.Message(resolved, KeyContextHeader),
		ContextEmpty:        c.Message(resolved, KeyContextEmpty),
		ReferencesHeader:    c.Message(resolved, KeyReferencesHeader),
		QuestionHeader:      c.Message(resolved, KeyQuestionHeader),
		FormatHeader:        c.Message(resolved, KeyFormatHeader),
		AnswerPlaceholder:   c.Message(resolved, KeyAnswerPlaceholder),
		CitationPlaceholder: c.Message(resolved, KeyCitationPlaceholder),
	}
}

// NoContext returns the answer given when nothing relevant was retrieved.
func (c *Catalog) NoContext(lang string) string {
	return c.Message(lang, KeyNoContext)
}
