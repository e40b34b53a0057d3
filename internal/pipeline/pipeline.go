package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/finextract/internal/chunker"
	"github.com/dgallion1/finextract/internal/embed"
	"github.com/dgallion1/finextract/internal/extract"
	"github.com/dgallion1/finextract/internal/parser"
	"github.com/dgallion1/finextract/internal/record"
	"github.com/dgallion1/finextract/internal/repair"
	"github.com/dgallion1/finextract/internal/vectorstore"
)

// Stage names a step of a run, reported through Request.OnStage.
type Stage string

const (
	StageParsing     Stage = "parsing"
	StageChunking    Stage = "chunking"
	StageIndexing    Stage = "indexing"
	StageRetrieving  Stage = "retrieving"
	StageExtracting  Stage = "extracting"
	StageNormalizing Stage = "normalizing"
)

// Options tune a Pipeline.
type Options struct {
	Chunk     chunker.Config
	Retrieval vectorstore.GatewayConfig
	K         int    // chunks retrieved per run; 0 uses vectorstore.DefaultK
	Query     string // retrieval query; empty uses the rendered instruction

	MaxInputTokens int
	Lenient        bool

	// Backoff overrides the wait between retries; nil uses Backoff.
	Backoff func(attempt int) time.Duration
}

// Deps are the collaborators a Pipeline calls.
type Deps struct {
	Embedder   embed.Embedder
	Store      vectorstore.Store
	Completer  extract.Completer
	Counter    extract.TokenCounter // nil estimates tokens
	Stats      *extract.LLMStats    // nil disables call stats
	Normalizer *record.Normalizer   // nil uses the embedded column map
	Logger     *slog.Logger
}

// Pipeline runs one document at a time from file to financial rows.
type Pipeline struct {
	opts       Options
	gateway    *vectorstore.Gateway
	engine     *extract.Engine
	repair     repair.Parser
	normalizer *record.Normalizer
	log        *slog.Logger
}

// New validates opts and wires deps. Embedding and completion calls are
// retried while their errors report Retryable.
func New(opts Options, deps Deps) (*Pipeline, error) {
	if err := opts.Chunk.Validate(); err != nil {
		return nil, err
	}
	if deps.Embedder == nil || deps.Store == nil || deps.Completer == nil {
		return nil, errors.New("pipeline: embedder, store and completer are required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.K <= 0 {
		opts.K = vectorstore.DefaultK
	}
	if opts.Backoff == nil {
		opts.Backoff = Backoff
	}
	norm := deps.Normalizer
	if norm == nil {
		var err error
		if norm, err = record.DefaultNormalizer(); err != nil {
			return nil, err
		}
	}

	r := retrier{backoff: opts.Backoff, log: log}
	embedder := retryEmbedder{Embedder: deps.Embedder, r: r}
	completer := retryCompleter{Completer: deps.Completer, r: r}

	return &Pipeline{
		opts:       opts,
		gateway:    vectorstore.NewGateway(deps.Store, embedder, opts.Retrieval, log),
		engine:     extract.NewEngine(completer, deps.Counter, deps.Stats, extract.EngineConfig{MaxInputTokens: opts.MaxInputTokens}, log),
		repair:     repair.Parser{Lenient: opts.Lenient, Log: log},
		normalizer: norm,
		log:        log,
	}, nil
}

// Request describes one document run. Either Path or Data must be set; with
// Data, Filename selects the parser.
type Request struct {
	Path     string
	Data     []byte
	Filename string

	CollectionID   string // empty uses the content hash of the document
	AlreadyIndexed bool
	Years          []string

	OnStage func(Stage)
}

// Result is the outcome of a run. Parse.Status is Unparsed when the
// completion could not be decoded; Rows are then all nil except Year.
type Result struct {
	CollectionID string
	Title        string
	Pages        int
	Chunks       int
	Index        vectorstore.Index
	Retrieved    int
	Prompt       extract.Prompt
	Completion   string
	Parse        repair.Result
	Columns      []string
	Rows         []record.FinancialRow
}

// Run executes parse, chunk, index, retrieve, prompt, complete, repair and
// normalize in order. Document and service errors abort the run; decode
// failures do not.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	stage := func(s Stage) {
		if req.OnStage != nil {
			req.OnStage(s)
		}
	}

	stage(StageParsing)
	data, filename, err := req.source()
	if err != nil {
		return nil, err
	}
	doc, err := parser.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}
	collection := req.CollectionID
	if collection == "" {
		collection = ContentHashHex(data)
	}
	log := p.log.With("collection", collection, "source", doc.Source)
	res := &Result{CollectionID: collection, Title: doc.Title, Pages: len(doc.Pages)}

	stage(StageChunking)
	chunks, err := chunker.Chunk(doc, p.opts.Chunk)
	if err != nil {
		return nil, err
	}
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		log.Warn("document has no extractable text", "pages", res.Pages)
	}

	stage(StageIndexing)
	idx, err := p.gateway.EnsureIndexed(ctx, collection, chunks, req.AlreadyIndexed)
	if err != nil {
		return nil, err
	}
	res.Index = idx

	instruction := extract.Template{Years: req.Years}.Render()
	query := p.opts.Query
	if query == "" {
		query = instruction
	}

	stage(StageRetrieving)
	retrieved, err := p.gateway.Query(ctx, idx, query, p.opts.K)
	if err != nil {
		return nil, err
	}
	res.Retrieved = len(retrieved)

	stage(StageExtracting)
	prompt, err := p.engine.BuildPrompt(instruction, retrieved)
	if err != nil {
		return nil, err
	}
	res.Prompt = prompt
	completion, err := p.engine.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("complete extraction prompt: %w", err)
	}
	res.Completion = completion

	stage(StageNormalizing)
	res.Parse = p.repair.Parse(completion)
	res.Columns = p.normalizer.Columns()
	res.Rows = p.normalizer.NormalizeAll(res.Parse.Record, req.Years)

	log.Info("extraction run complete",
		"chunks", res.Chunks,
		"retrieved", res.Retrieved,
		"prompt_tokens", prompt.Tokens,
		"parse_status", res.Parse.Status,
		"rows", len(res.Rows),
	)
	return res, nil
}

func (r Request) source() ([]byte, string, error) {
	if r.Data != nil {
		name := r.Filename
		if name == "" {
			name = r.Path
		}
		return r.Data, name, nil
	}
	if r.Path == "" {
		return nil, "", errors.New("pipeline: request needs a path or data")
	}
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, "", &parser.DocumentReadError{Path: r.Path, Err: err}
	}
	return data, filepath.Base(r.Path), nil
}
