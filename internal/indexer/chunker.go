package indexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"hybrid-rag/internal/domain"
)

const (
	// DefaultTargetChunkSize is the nominal chunk length in runes before density adjustment.
	DefaultTargetChunkSize = 512
	// DefaultMinChunkSize is the lower clamp for the density-adjusted target.
	DefaultMinChunkSize = 100
	// DefaultMaxChunkSize is the upper clamp for the density-adjusted target.
	DefaultMaxChunkSize = 1024
	// DefaultOverlapTokens enables one-sentence overlap between neighbouring chunks when > 0.
	DefaultOverlapTokens = 50

	periodPlaceholder  = "<PERIOD>"
	densityPunctuation = ".,;:!?"
)

var (
	abbreviationPattern = regexp.MustCompile(`\b(Dr|Mr|Mrs|Ms|Prof|Sr|Jr)\.`)
	sentenceBoundary    = regexp.MustCompile(`[.!?]+\s+`)
)

// ChunkerConfig holds the sizing parameters of a SemanticChunker.
// Sizes are measured in runes and are soft targets: a single sentence longer
// than MaxChunkSize is still emitted whole.
type ChunkerConfig struct {
	TargetChunkSize int `json:"target_chunk_size"`
	MinChunkSize    int `json:"min_chunk_size"`
	MaxChunkSize    int `json:"max_chunk_size"`
	OverlapTokens   int `json:"overlap_tokens"`
}

// DefaultChunkerConfig returns the default chunker parameters.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		TargetChunkSize: DefaultTargetChunkSize,
		MinChunkSize:    DefaultMinChunkSize,
		MaxChunkSize:    DefaultMaxChunkSize,
		OverlapTokens:   DefaultOverlapTokens,
	}
}

// Validate checks that the sizes are positive and ordered min <= target <= max.
func (c ChunkerConfig) Validate() error {
	if c.MinChunkSize <= 0 || c.TargetChunkSize <= 0 || c.MaxChunkSize <= 0 {
		return &domain.ValidationError{Field: "chunk_size", Message: "sizes must be greater than 0"}
	}
	if c.MinChunkSize > c.TargetChunkSize || c.TargetChunkSize > c.MaxChunkSize {
		return &domain.ValidationError{
			Field:   "chunk_size",
			Message: fmt.Sprintf("expected min <= target <= max, got %d/%d/%d", c.MinChunkSize, c.TargetChunkSize, c.MaxChunkSize),
		}
	}
	if c.OverlapTokens < 0 {
		return &domain.ValidationError{Field: "overlap_tokens", Message: "must not be negative"}
	}
	return nil
}

// SemanticChunker splits text into sentence-aligned chunks whose size adapts to
// the information density of the content: denser text yields smaller chunks.
type SemanticChunker struct {
	cfg ChunkerConfig
}

// NewSemanticChunker creates a chunker with the given configuration.
func NewSemanticChunker(cfg ChunkerConfig) *SemanticChunker {
	return &SemanticChunker{cfg: cfg}
}

// Config returns the chunker parameters.
func (c *SemanticChunker) Config() ChunkerConfig {
	return c.cfg
}

// Chunk splits text into ordered chunks belonging to documentID.
// Empty input yields no chunks.
func (c *SemanticChunker) Chunk(text, documentID string) []domain.Chunk {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		chunks       []domain.Chunk
		current      []string
		currentSize  int
		charPosition int
	)

	emit := func() {
		chunkText := strings.Join(current, " ")
		index := len(chunks)
		chunks = append(chunks, domain.Chunk{
			Text: chunkText,
			Metadata: domain.ChunkMetadata{
				ChunkID:         fmt.Sprintf("%s_chunk_%d", documentID, index),
				DocumentID:      documentID,
				ChunkIndex:      index,
				CharStart:       charPosition - currentSize,
				CharEnd:         charPosition,
				SemanticDensity: SemanticDensity(chunkText),
			},
		})
	}

	for _, sentence := range sentences {
		sentenceLen := utf8.RuneCountInString(sentence)
		target := c.adjustedTarget(SemanticDensity(sentence))

		if len(current) > 0 && currentSize+sentenceLen > target {
			emit()

			if c.cfg.OverlapTokens > 0 {
				last := current[len(current)-1]
				current = []string{last, sentence}
				currentSize = utf8.RuneCountInString(last) + sentenceLen
			} else {
				current = []string{sentence}
				currentSize = sentenceLen
			}
		} else {
			current = append(current, sentence)
			currentSize += sentenceLen
		}

		charPosition += sentenceLen + 1
	}

	if len(current) > 0 {
		emit()
	}

	for i := range chunks {
		chunks[i].Metadata.OverlapPrevious = i > 0
		chunks[i].Metadata.OverlapNext = i < len(chunks)-1
	}

	return chunks
}

// adjustedTarget scales the target size by (1.5 - density) and clamps it to [min, max].
func (c *SemanticChunker) adjustedTarget(density float64) int {
	target := int(float64(c.cfg.TargetChunkSize) * (1.5 - density))
	if target < c.cfg.MinChunkSize {
		target = c.cfg.MinChunkSize
	}
	if target > c.cfg.MaxChunkSize {
		target = c.cfg.MaxChunkSize
	}
	return target
}

// SplitSentences splits text on runs of sentence terminators followed by whitespace.
// Common titles such as "Dr." do not end a sentence.
func SplitSentences(text string) []string {
	protected := abbreviationPattern.ReplaceAllString(text, "${1}"+periodPlaceholder)
	parts := sentenceBoundary.Split(protected, -1)

	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.ReplaceAll(part, periodPlaceholder, "."))
		if part == "" {
			continue
		}
		sentences = append(sentences, part)
	}
	return sentences
}

// SemanticDensity estimates information density in [0, 1] from the unique-word
// ratio and the punctuation frequency of text. Text without words scores 0.
func SemanticDensity(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	uniqueRatio := float64(len(unique)) / float64(len(words))

	var punct, total int
	for _, r := range text {
		total++
		if strings.ContainsRune(densityPunctuation, r) {
			punct++
		}
	}
	punctDensity := min(1.0, 10*float64(punct)/float64(total))

	return min(1.0, 0.7*uniqueRatio+0.3*punctDensity)
}
