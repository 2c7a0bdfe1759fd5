package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_ports.go -package=mocks citerag/internal/rag Searcher,Generator,TitleLookup

import (
	"context"
	"strings"
	"time"

	"citerag/internal/apperr"
	"citerag/internal/contextutil"
	"citerag/internal/domain"
	"citerag/internal/search"
)

// Engine provides RAG (Retrieval-Augmented Generation) functionality.
type Engine interface {
	// Ask answers a question from retrieved context. Only invalid requests
	// return an error; retrieval and generation failures degrade the answer.
	Ask(ctx context.Context, req AskRequest) (AskOutput, error)
}

// Searcher retrieves ranked chunks.
type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]domain.SearchMatch, error)
}

// Generator completes a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt domain.Prompt) (string, error)
}

// TitleLookup resolves a document title when chunk metadata carries none.
type TitleLookup interface {
	DocumentTitle(ctx context.Context, documentID string) (string, error)
}

// Config holds the ask pipeline limits.
type Config struct {
	// TopK is the number of context chunks used when a request sets none.
	TopK int
	// PoolK is the minimum number of hits retrieved before selection.
	PoolK int
	// MaxChunksPerDoc caps how many chunks one document contributes.
	MaxChunksPerDoc int
	// BudgetChars bounds the context length in characters.
	BudgetChars int
}

// DefaultConfig returns the standard ask limits.
func DefaultConfig() Config {
	return Config{TopK: 5, PoolK: 20, MaxChunksPerDoc: 2, BudgetChars: 6000}
}

// Components are the pipeline stages an engine runs. Generator and Titles may be nil.
type Components struct {
	Searcher  Searcher
	Generator Generator
	Titles    TitleLookup
	Localizer Localizer
	Prompts   PromptBuilder
	Contexts  ContextBuilder
	Selector  ContextSelector
	Parser    OutputParser
	Mapper    CitationMapper
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	c   Components
	cfg Config
}

// NewEngine creates a new RAG engine.
func NewEngine(c Components, cfg Config) (Engine, error) {
	if c.Searcher == nil || c.Localizer == nil || c.Prompts == nil {
		return nil, apperr.Invalid("components", "searcher, localizer and prompt builder are required")
	}
	if c.Contexts == nil {
		c.Contexts = BudgetContextBuilder{}
	}
	if cfg.TopK <= 0 {
		return nil, apperr.Invalid("top_k", "must be positive, got %d", cfg.TopK)
	}
	if cfg.PoolK < 0 {
		return nil, apperr.Invalid("pool_k", "must be >= 0, got %d", cfg.PoolK)
	}
	if cfg.MaxChunksPerDoc <= 0 {
		return nil, apperr.Invalid("max_chunks_per_doc", "must be positive, got %d", cfg.MaxChunksPerDoc)
	}
	if cfg.BudgetChars <= 0 {
		return nil, apperr.Invalid("budget_chars", "must be positive, got %d", cfg.BudgetChars)
	}
	return &ragEngine{c: c, cfg: cfg}, nil
}

// Ask runs search, selection, context building, generation and citation mapping.
func (e *ragEngine) Ask(ctx context.Context, req AskRequest) (AskOutput, error) {
	logger := contextutil.LoggerFromContext(ctx)
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskOutput{}, apperr.Invalid("question", "cannot be blank")
	}
	if req.TopK < 0 {
		return AskOutput{}, apperr.Invalid("top_k", "must be >= 0, got %d", req.TopK)
	}
	topK := req.TopK
	if topK == 0 {
		topK = e.cfg.TopK
	}
	lang := e.c.Prompts.Language(question, req.Lang)

	logger.InfoContext(ctx, "RAG query started", "question_len", len(question), "top_k", topK, "lang", lang)

	pool := max(topK, e.cfg.PoolK)
	hits, err := e.c.Searcher.Search(ctx, search.Query{Text: question, TopK: pool, Filter: req.Filter})
	if err != nil {
		logger.WarnContext(ctx, "search failed, answering without context", "error", err)
		return e.noMatches(lang), nil
	}
	if len(hits) == 0 {
		logger.InfoContext(ctx, "no search results found")
		return e.noMatches(lang), nil
	}

	sources := make([]ContextSource, 0, len(hits))
	for _, h := range hits {
		sources = append(sources, sourceFromMatch(h, e.title(ctx, h)))
	}
	selected, err := e.c.Selector.Select(sources, topK, e.cfg.MaxChunksPerDoc)
	if err != nil {
		return AskOutput{}, err
	}
	built, err := e.c.Contexts.Build(selected, e.cfg.BudgetChars)
	if err != nil {
		return AskOutput{}, err
	}
	if built.UsedK == 0 {
		logger.InfoContext(ctx, "selected chunks were empty", "selected", len(selected))
		return e.noMatches(lang), nil
	}
	logger.DebugContext(ctx, "context built", "used_k", built.UsedK, "chars", len(built.Text), "truncated", built.Truncated)

	prompt := e.c.Prompts.Build(built, question, lang)
	raw, err := e.generate(ctx, prompt)
	if err != nil {
		logger.WarnContext(ctx, "generation failed, returning extractive answer", "error", err)
		return extractive(built), nil
	}
	if strings.TrimSpace(raw) == "" {
		logger.WarnContext(ctx, "generation returned a blank answer, returning extractive answer")
		return extractive(built), nil
	}

	parsed := e.c.Parser.Parse(raw)
	citations := e.c.Mapper.Map(parsed.CitationNumbers, built)
	out := AskOutput{
		Answer:    parsed.Answer,
		Citations: citations,
		UsedK:     built.UsedK,
	}
	if len(citations) == 0 {
		out.Notes = NoteLLMNoCitations
	}

	logger.InfoContext(ctx, "RAG query completed",
		"used_k", out.UsedK,
		"citations", len(out.Citations),
		"notes", string(out.Notes),
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (e *ragEngine) generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	if e.c.Generator == nil {
		return "", errNoGenerator
	}
	return e.c.Generator.Complete(ctx, prompt)
}

var errNoGenerator = apperr.WrapError(apperr.ErrExternalService, "no generator configured")

func (e *ragEngine) noMatches(lang string) AskOutput {
	return AskOutput{
		Answer:    e.c.Localizer.NoContext(lang),
		Citations: []Citation{},
		UsedK:     0,
		Notes:     NoteNoMatches,
	}
}

func extractive(built BuiltContext) AskOutput {
	citations := make([]Citation, 0, len(built.Citations))
	for _, entry := range built.Citations {
		citations = append(citations, entry.Citation())
	}
	return AskOutput{
		Answer:    built.Text,
		Citations: citations,
		UsedK:     built.UsedK,
		Notes:     NoteExtractiveFallback,
	}
}

// title prefers chunk metadata, then the title lookup, then the document ID.
func (e *ragEngine) title(ctx context.Context, m domain.SearchMatch) string {
	if t := m.Chunk.Title(); t != "" {
		return t
	}
	if e.c.Titles != nil {
		t, err := e.c.Titles.DocumentTitle(ctx, m.DocumentID)
		if err == nil && strings.TrimSpace(t) != "" {
			return t
		}
	}
	return m.DocumentID
}
