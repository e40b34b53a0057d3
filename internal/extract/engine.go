package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/finextract/internal/doctree"
)

// ErrInstructionTooLong is returned when the instruction alone exceeds the
// input token budget.
var ErrInstructionTooLong = errors.New("instruction exceeds input token budget")

// EngineConfig bounds prompt size.
type EngineConfig struct {
	MaxInputTokens int // 0 means unlimited
}

// Prompt is an assembled completion prompt.
type Prompt struct {
	Text     string
	Included []doctree.Chunk
	Dropped  int
	Tokens   int
	Warnings []ContextWarning
}

// Engine assembles "stuff" prompts and sends them to a Completer.
type Engine struct {
	completer Completer
	counter   TokenCounter
	stats     *LLMStats
	cfg       EngineConfig
	log       *slog.Logger
}

// NewEngine creates an Engine. A nil counter uses EstimateCounter and nil
// stats disables latency tracking.
func NewEngine(completer Completer, counter TokenCounter, stats *LLMStats, cfg EngineConfig, logger *slog.Logger) *Engine {
	if counter == nil {
		counter = EstimateCounter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{completer: completer, counter: counter, stats: stats, cfg: cfg, log: logger}
}

const (
	contextHeader  = "Use the following excerpts from an annual report to answer the request at the end.\n\n"
	chunkSeparator = "\n\n"
	requestHeader  = "\n\nRequest:\n"
)

// BuildPrompt places the chunks first, in rank order, followed by the
// instruction. Over budget, the lowest-ranked chunks are dropped; the
// instruction is never shortened.
func (e *Engine) BuildPrompt(instruction string, chunks []doctree.Chunk) (Prompt, error) {
	base := e.counter.Count(contextHeader + requestHeader + instruction)
	limit := e.cfg.MaxInputTokens
	if limit > 0 && base > limit {
		return Prompt{}, fmt.Errorf("%w: %d tokens, budget %d", ErrInstructionTooLong, base, limit)
	}

	total := base
	included := make([]doctree.Chunk, 0, len(chunks))
	for _, c := range chunks {
		cost := e.counter.Count(c.Text + chunkSeparator)
		if limit > 0 && total+cost > limit {
			break
		}
		total += cost
		included = append(included, c)
	}

	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i, c := range included {
		if i > 0 {
			sb.WriteString(chunkSeparator)
		}
		sb.WriteString(c.Text)
	}
	sb.WriteString(requestHeader)
	sb.WriteString(instruction)

	p := Prompt{
		Text:     sb.String(),
		Included: included,
		Dropped:  len(chunks) - len(included),
		Tokens:   total,
		Warnings: ScreenContext(included),
	}
	if p.Dropped > 0 {
		e.log.Info("dropped low-ranked chunks to fit budget",
			"dropped", p.Dropped, "kept", len(included), "budget", limit)
	}
	for _, w := range p.Warnings {
		e.log.Warn("suspicious text in context", "chunk_id", w.ChunkID, "match", w.Match)
	}
	return p, nil
}

// Complete sends the prompt and records the call latency.
func (e *Engine) Complete(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	text, err := e.completer.Complete(ctx, p.Text)
	elapsed := time.Since(start)
	if e.stats != nil {
		e.stats.Record(elapsed.Milliseconds(), p.Tokens, err != nil)
	}
	if err != nil {
		return "", err
	}
	e.log.Debug("completion received",
		"model", e.completer.Model(), "prompt_tokens", p.Tokens, "response_bytes", len(text), "elapsed_ms", elapsed.Milliseconds())
	return text, nil
}

// Model returns the completer's model name.
func (e *Engine) Model() string { return e.completer.Model() }
