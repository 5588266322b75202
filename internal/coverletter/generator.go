// Package coverletter drafts HTML cover letters with an LLM.
package coverletter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"lcamail-engine/internal/config"
)

var (
	ErrNotConfigured = errors.New("missing OPENAI_API_KEY")
	ErrEmptyResponse = errors.New("model returned no content")
)

type Input struct {
	JobTitle       string
	CompanyName    string
	JobDescription string
	ResumeName     string
	Resume         []byte
}

type Options struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type Generator struct {
	model llms.Model
	opts  Options
	log   *zap.Logger
}

// New builds an OpenAI-backed generator from cfg. Without an API key the
// generator is still returned and every call fails with ErrNotConfigured.
func New(cfg config.Config, log *zap.Logger) (*Generator, error) {
	opts := Options{
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     90 * time.Second,
	}
	if strings.TrimSpace(cfg.AI.APIKey) == "" {
		return NewWithModel(nil, opts, log), nil
	}
	llm, err := openai.New(
		openai.WithToken(cfg.AI.APIKey),
		openai.WithModel(cfg.AI.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return NewWithModel(llm, opts, log), nil
}

func NewWithModel(model llms.Model, opts Options, log *zap.Logger) *Generator {
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{model: model, opts: opts, log: log}
}

func (g *Generator) Configured() bool { return g.model != nil }

// Generate returns the cover letter as an HTML fragment.
func (g *Generator) Generate(ctx context.Context, in Input) (string, error) {
	if g.model == nil {
		return "", ErrNotConfigured
	}
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	resume := ResumeText(in.ResumeName, in.Resume)
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildPrompt(in, resume)),
	}

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, msgs,
		llms.WithTemperature(g.opts.Temperature),
		llms.WithMaxTokens(g.opts.MaxTokens),
	)
	if err != nil {
		g.log.Error("cover letter generation failed",
			zap.String("company", in.CompanyName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("generate cover letter: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	out := CleanHTML(resp.Choices[0].Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	g.log.Info("cover letter generated",
		zap.String("company", in.CompanyName),
		zap.Bool("resume_text", resume != ResumePlaceholder),
		zap.Int("bytes", len(out)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// CleanHTML strips markdown code fences and, for full documents, keeps only
// the body contents.
func CleanHTML(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	lower := strings.ToLower(s)
	if !strings.Contains(lower, "<body") && !strings.Contains(lower, "<html") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	body, err := doc.Find("body").First().Html()
	if err != nil {
		return s
	}
	// keep head <style> blocks
	var styles strings.Builder
	doc.Find("head style").Each(func(_ int, sel *goquery.Selection) {
		if h, err := goquery.OuterHtml(sel); err == nil {
			styles.WriteString(h)
			styles.WriteString("\n")
		}
	})
	return strings.TrimSpace(styles.String() + strings.TrimSpace(body))
}
