package extract

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/dgallion1/finextract/internal/chunker"
)

// TokenCounter measures prompt size.
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter uses the chunker heuristic and needs no tokenizer data.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int { return chunker.EstimateTokens(text) }

// TiktokenCounter counts cl100k_base tokens. The encoding is loaded on first
// use; if it cannot be loaded the counter falls back to EstimateCounter.
type TiktokenCounter struct {
	Log *slog.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

const tiktokenEncoding = "cl100k_base"

func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(tiktokenEncoding)
		if err != nil {
			if c.Log != nil {
				c.Log.Warn("tokenizer unavailable, estimating tokens", "encoding", tiktokenEncoding, "error", err)
			}
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return chunker.EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
