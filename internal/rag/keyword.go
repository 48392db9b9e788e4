package rag

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"hybrid-rag/internal/domain"
)

// minKeywordLength is the shortest token the keyword index keeps, exclusive.
const minKeywordLength = 2

// KeywordHit is a chunk matched by keyword search with its normalized score.
type KeywordHit struct {
	ChunkID string
	Score   float64
}

// KeywordIndex is an in-memory inverted index from lowercased whitespace
// tokens to chunk IDs. It is safe for concurrent use.
type KeywordIndex struct {
	mu       sync.RWMutex
	postings map[string]map[string]struct{}
}

// NewKeywordIndex creates an empty keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{postings: make(map[string]map[string]struct{})}
}

// Index adds chunkID to the postings of every token in text.
func (k *KeywordIndex) Index(chunkID, text string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	addPostings(k.postings, chunkID, text)
}

// Rebuild replaces the index with postings built from chunks.
func (k *KeywordIndex) Rebuild(chunks []domain.Chunk) {
	postings := make(map[string]map[string]struct{})
	for _, c := range chunks {
		addPostings(postings, c.ID(), c.Text)
	}

	k.mu.Lock()
	k.postings = postings
	k.mu.Unlock()
}

// VocabularySize returns the number of distinct tokens.
func (k *KeywordIndex) VocabularySize() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.postings)
}

// Search scores chunks by summed IDF of the query tokens they contain,
// normalized so the best chunk scores 1. Each distinct query token counts once.
// Results are ordered by score, then chunk ID.
func (k *KeywordIndex) Search(query string, topK int) []KeywordHit {
	if topK <= 0 {
		return nil
	}

	k.mu.RLock()
	vocab := float64(len(k.postings))
	scores := make(map[string]float64)
	seen := make(map[string]struct{})
	for _, token := range keywordTokens(query) {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		ids, ok := k.postings[token]
		if !ok {
			continue
		}
		idf := math.Log(1 + vocab/float64(1+len(ids)))
		for id := range ids {
			scores[id] += idf
		}
	}
	k.mu.RUnlock()

	if len(scores) == 0 {
		return nil
	}

	var maxScore float64
	for _, s := range scores {
		maxScore = max(maxScore, s)
	}

	hits := make([]KeywordHit, 0, len(scores))
	for id, s := range scores {
		if maxScore > 0 {
			s /= maxScore
		}
		hits = append(hits, KeywordHit{ChunkID: id, Score: s})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func addPostings(postings map[string]map[string]struct{}, chunkID, text string) {
	for _, token := range keywordTokens(text) {
		ids, ok := postings[token]
		if !ok {
			ids = make(map[string]struct{})
			postings[token] = ids
		}
		ids[chunkID] = struct{}{}
	}
}

// keywordTokens lowercases text, splits on whitespace and drops tokens of
// two characters or fewer. Punctuation stays attached to its token.
func keywordTokens(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minKeywordLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
