package enrich

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// PlaceholderSummary is substituted when the generator never produced a
// summary within the attempt budget. It must never be empty: downstream feed
// entries always carry a description.
const PlaceholderSummary = "No summary available."

// Translator normalizes raw feed text into the target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Generator answers a free-form prompt with text whose lines may carry the
// TITLE:/SUMMARY:/CATEGORY: labels.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result is the enriched form of one entry. TranslatedTitle and
// TranslatedDescription are what gets stored as the "original" fields, same
// as the rest of the pipeline works in the target language.
type Result struct {
	TranslatedTitle       string
	TranslatedDescription string
	AITitle               string
	AISummary             string
	AICategory            string
}

// InvalidCategoryError is terminal for an item: the category drives feed
// partitioning and must not default silently.
type InvalidCategoryError struct {
	Category string
	Allowed  []string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("category %q not in allowed set [%s]", e.Category, strings.Join(e.Allowed, ", "))
}

// Config controls the enrichment retry policy.
type Config struct {
	MaxAttempts int
	CallTimeout time.Duration
	// Categories, when non-empty, is the closed category set; a generated
	// category outside it triggers a retry and ultimately a hard failure.
	Categories []string
	// MaxPromptChars bounds the text handed to the generator.
	MaxPromptChars int
}

// Enricher runs translation followed by labeled-line generation, retrying
// incomplete or miscategorized responses up to the attempt ceiling.
type Enricher struct {
	translator  Translator
	generator   Generator
	maxAttempts int
	callTimeout time.Duration
	categories  []string
	allowed     map[string]struct{}
	maxPrompt   int
}

// New builds an Enricher.
func New(translator Translator, generator Generator, cfg Config) *Enricher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 4000
	}

	var allowed map[string]struct{}
	if len(cfg.Categories) > 0 {
		allowed = make(map[string]struct{}, len(cfg.Categories))
		for _, c := range cfg.Categories {
			allowed[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
		}
	}

	return &Enricher{
		translator:  translator,
		generator:   generator,
		maxAttempts: cfg.MaxAttempts,
		callTimeout: cfg.CallTimeout,
		categories:  cfg.Categories,
		allowed:     allowed,
		maxPrompt:   cfg.MaxPromptChars,
	}
}

// Enrich translates the entry text and derives title, summary and category
// from it. The identical generation request is re-issued on an incomplete or
// out-of-set response, with a little jitter so a misbehaving model is not
// hammered in a tight loop.
func (e *Enricher) Enrich(ctx context.Context, title, description string) (Result, error) {
	translatedTitle, err := e.translate(ctx, title)
	if err != nil {
		return Result{}, fmt.Errorf("translate title: %w", err)
	}
	translatedDesc, err := e.translate(ctx, description)
	if err != nil {
		return Result{}, fmt.Errorf("translate description: %w", err)
	}

	res := Result{
		TranslatedTitle:       translatedTitle,
		TranslatedDescription: translatedDesc,
	}

	prompt := e.buildPrompt(translatedTitle, translatedDesc)

	var last parsed
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepJitter(ctx); err != nil {
				return Result{}, err
			}
		}

		raw, err := e.generate(ctx, prompt)
		if err != nil {
			return Result{}, fmt.Errorf("generate: %w", err)
		}

		last = parseResponse(raw)
		if last.complete() && e.categoryAllowed(last.category) {
			res.AITitle = last.title
			res.AISummary = last.summary
			res.AICategory = last.category
			return res, nil
		}
	}

	// Attempts exhausted; degrade what is allowed to degrade.
	if !e.categoryAllowed(last.category) {
		return Result{}, &InvalidCategoryError{Category: last.category, Allowed: e.categories}
	}

	res.AICategory = last.category
	res.AITitle = last.title
	if res.AITitle == "" {
		res.AITitle = translatedTitle
	}
	res.AISummary = last.summary
	if res.AISummary == "" {
		res.AISummary = PlaceholderSummary
	}
	return res, nil
}

func (e *Enricher) translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.translator.Translate(callCtx, text)
}

func (e *Enricher) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.generator.Generate(callCtx, prompt)
}

func (e *Enricher) categoryAllowed(category string) bool {
	if e.allowed == nil {
		return category != ""
	}
	_, ok := e.allowed[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

func (e *Enricher) buildPrompt(title, description string) string {
	var b strings.Builder
	b.WriteString("You are a news editor. Read the article below and respond with exactly three lines:\n")
	b.WriteString("TITLE: a concise rewritten headline\n")
	b.WriteString("SUMMARY: a two-sentence summary\n")
	if len(e.categories) > 0 {
		fmt.Fprintf(&b, "CATEGORY: one of: %s\n", strings.Join(e.categories, ", "))
	} else {
		b.WriteString("CATEGORY: a single broad news category\n")
	}
	b.WriteString("\nArticle:\n")

	content := title
	if description != "" {
		content += "\n\n" + description
	}
	if len([]rune(content)) > e.maxPrompt {
		content = string([]rune(content)[:e.maxPrompt])
	}
	b.WriteString(content)
	return b.String()
}

func sleepJitter(ctx context.Context) error {
	delay := time.Duration(100+rand.Intn(300)) * time.Millisecond
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
