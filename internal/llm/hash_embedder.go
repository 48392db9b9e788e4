package llm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"hybrid-rag/internal/domain"
)

// DefaultEmbeddingDim is the dimension used by the local hash embedder.
const DefaultEmbeddingDim = 384

var embeddingStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"do": {}, "does": {}, "did": {}, "this": {}, "that": {},
}

// HashEmbedder is a deterministic, dependency-free embedding provider.
// It hashes content words into a fixed number of signed buckets, so texts that
// share vocabulary land close together. It is not a semantic model.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder producing vectors of the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultEmbeddingDim
	}
	return &HashEmbedder{dim: dim}
}

// Dimensions returns the embedding dimension.
func (h *HashEmbedder) Dimensions() int {
	return h.dim
}

// Embed returns the unit-normalized embedding of text.
func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, h.dim)
	features := filterStopwords(tokenize(text))
	if len(features) == 0 {
		// Only stopwords or symbols.
		return digestSpread(vec, text), nil
	}

	for _, feature := range features {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(feature))
		sum := hasher.Sum64()
		bucket := sum % uint64(h.dim)
		if sum>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	if isZero(vec) {
		// Opposite-signed features cancelled out.
		return digestSpread(vec, text), nil
	}
	return Normalize(vec), nil
}

// digestSpread fills vec with the SHA-256 digest of text, so the result is
// deterministic and non-zero, and returns it normalized.
func digestSpread(vec []float32, text string) []float32 {
	clear(vec)
	digest := sha256.Sum256([]byte(text))
	for i, b := range digest {
		vec[i%len(vec)] += float32(b) / 255
	}
	return Normalize(vec)
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// EmbedBatch embeds each text in order.
func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array: %w", domain.ErrEmptyInput)
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		result[i] = vec
	}
	return result, nil
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := embeddingStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
