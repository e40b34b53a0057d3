package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/finextract/internal/doctree"
	"github.com/dgallion1/finextract/internal/embed"
)

// Retrieval defaults.
const (
	DefaultK       = 25
	DefaultFetchK  = 50
	DefaultLambda  = 0.5
	defaultWorkers = 4
)

// GatewayConfig tunes indexing and retrieval.
type GatewayConfig struct {
	FetchK      int     // candidates fetched before MMR re-ranking
	Lambda      float64 // relevance weight in [0,1]; 1 ignores diversity
	Concurrency int     // parallel embedding calls while indexing
}

// Index is a handle to a populated collection.
type Index struct {
	Collection string
	Size       int
	Created    bool // true when this call wrote the collection
}

// Gateway writes chunks into a Store and retrieves them by maximal marginal
// relevance. Callers serialise writes to the same collection.
type Gateway struct {
	store    Store
	embedder embed.Embedder
	cfg      GatewayConfig
	log      *slog.Logger
}

func NewGateway(store Store, embedder embed.Embedder, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if cfg.FetchK <= 0 {
		cfg.FetchK = DefaultFetchK
	}
	if cfg.Lambda < 0 || cfg.Lambda > 1 {
		cfg.Lambda = DefaultLambda
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: store, embedder: embedder, cfg: cfg, log: logger}
}

// chunkNamespace scopes deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("6f1c9f0e-2d4b-4c6e-9a57-3b8f0d6e1a24")

// ChunkID returns the stable ID of the chunk at position in collection.
func ChunkID(collection string, position int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(collection+"/"+strconv.Itoa(position))).String()
}

// EnsureIndexed makes sure collection holds the embedded chunks. A collection
// that already has records is reused without embedding anything. The caller's
// alreadyIndexed hint is only compared against the store and logged when the
// two disagree.
func (g *Gateway) EnsureIndexed(ctx context.Context, collection string, chunks []doctree.Chunk, alreadyIndexed bool) (Index, error) {
	n, err := g.store.Count(ctx, collection)
	if err != nil {
		return Index{}, fmt.Errorf("check collection %s: %w", collection, err)
	}
	exists := n > 0
	if exists != alreadyIndexed {
		g.log.Warn("indexed flag disagrees with store",
			"collection", collection, "flag", alreadyIndexed, "records", n)
	}
	if exists {
		g.log.Info("reusing collection", "collection", collection, "records", n)
		return Index{Collection: collection, Size: n}, nil
	}
	if len(chunks) == 0 {
		return Index{Collection: collection}, nil
	}

	records := make([]Record, len(chunks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for i, c := range chunks {
		eg.Go(func() error {
			vec, err := g.embedder.Embed(egCtx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			id := ChunkID(collection, i)
			c.ID = id
			records[i] = Record{ID: id, Collection: collection, Position: i, Chunk: c, Embedding: vec}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Index{}, err
	}

	if err := g.store.Add(ctx, collection, records); err != nil {
		return Index{}, fmt.Errorf("write collection %s: %w", collection, err)
	}
	g.log.Info("indexed collection", "collection", collection, "chunks", len(records))
	return Index{Collection: collection, Size: len(records), Created: true}, nil
}

// Query returns up to k chunks relevant to text, diversified by MMR. Results
// are in selection order.
func (g *Gateway) Query(ctx context.Context, idx Index, text string, k int) ([]doctree.Chunk, error) {
	if k <= 0 {
		k = DefaultK
	}
	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	fetchK := max(g.cfg.FetchK, k)
	candidates, err := g.store.Search(ctx, idx.Collection, vec, fetchK)
	if err != nil {
		return nil, fmt.Errorf("search collection %s: %w", idx.Collection, err)
	}

	selected := MMR(vec, candidates, k, g.cfg.Lambda)
	out := make([]doctree.Chunk, len(selected))
	for i, m := range selected {
		out[i] = m.Chunk
	}
	g.log.Debug("retrieved chunks", "collection", idx.Collection, "candidates", len(candidates), "selected", len(out))
	return out, nil
}
